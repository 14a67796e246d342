package main

import (
	"fmt"

	"abtest/adapters/source"
	"abtest/domain/experiment"
	"abtest/internal"
	"abtest/internal/errors"
	"abtest/internal/testkit"

	"github.com/spf13/cobra"
)

func newGenerateCmd(logger *internal.Logger) *cobra.Command {
	cfg := testkit.DefaultConfig()
	var shape, out, treatment, control string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic two-arm dataset (CSV or XLSX by extension)",
		Long: `Generate a deterministic synthetic experiment export.

Example: abtest generate --rows 1000 --shape skewed --out marketing_AB.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch testkit.Shape(shape) {
			case testkit.ShapeNormal, testkit.ShapeSkewed, testkit.ShapeConstant:
				cfg.Shape = testkit.Shape(shape)
			default:
				return errors.InvalidInput(fmt.Sprintf("unknown shape %q (want normal, skewed or constant)", shape))
			}
			cfg.Groups = experiment.GroupPair{Treatment: experiment.GroupLabel(treatment), Control: experiment.GroupLabel(control)}

			ds, err := testkit.Generate(cfg)
			if err != nil {
				return errors.InvalidInput(err.Error())
			}
			if err := source.WriteFile(out, ds.Headers, ds.Rows); err != nil {
				return errors.Wrapf(err, "failed to write %s", out)
			}
			logger.Info("wrote %d rows to %s", len(ds.Rows), out)
			return nil
		},
	}

	cmd.Flags().IntVar(&cfg.UsersPerGroup, "rows", cfg.UsersPerGroup, "Users per group")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed")
	cmd.Flags().StringVar(&shape, "shape", string(cfg.Shape), "Exposure distribution: normal, skewed or constant")
	cmd.Flags().Float64Var(&cfg.TreatmentRate, "treatment-rate", cfg.TreatmentRate, "Treatment conversion rate")
	cmd.Flags().Float64Var(&cfg.ControlRate, "control-rate", cfg.ControlRate, "Control conversion rate")
	cmd.Flags().Float64Var(&cfg.TreatmentShift, "exposure-shift", 0, "Added to the treatment exposure mean")
	cmd.Flags().IntVar(&cfg.OverlapUsers, "overlap", 0, "Users placed in both groups")
	cmd.Flags().StringVar(&treatment, "treatment", string(cfg.Groups.Treatment), "Treatment group label")
	cmd.Flags().StringVar(&control, "control", string(cfg.Groups.Control), "Control group label")
	cmd.Flags().StringVar(&out, "out", "marketing_AB.csv", "Output path (.csv or .xlsx)")

	return cmd
}
