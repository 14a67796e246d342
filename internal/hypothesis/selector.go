package hypothesis

import (
	"abtest/domain/experiment"
)

// ExposureState is a step of the exposure-test state machine:
// start -> normality_check -> {parametric_test | non_parametric_test} -> done
type ExposureState string

const (
	StateStart          ExposureState = "start"
	StateNormalityCheck ExposureState = "normality_check"
	StateParametric     ExposureState = "parametric_test"
	StateNonParametric  ExposureState = "non_parametric_test"
	StateDone           ExposureState = "done"
)

// SelectMethod is the branch decision. The parametric path is taken only when both
// groups' normality p-values exceed alpha and neither sample is constant.
func SelectMethod(treatment, control experiment.NormalityResult, alpha float64) experiment.Method {
	if treatment.Degenerate || control.Degenerate {
		return experiment.MethodNonParametric
	}
	if treatment.PValue > alpha && control.PValue > alpha {
		return experiment.MethodParametric
	}
	return experiment.MethodNonParametric
}

// stateFor maps a chosen method onto the state that runs it
func stateFor(m experiment.Method) ExposureState {
	if m == experiment.MethodParametric {
		return StateParametric
	}
	return StateNonParametric
}
