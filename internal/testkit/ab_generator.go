package testkit

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"abtest/domain/experiment"

	"gonum.org/v1/gonum/stat/distuv"
)

// Shape selects the exposure-count distribution of a synthetic arm
type Shape string

const (
	// ShapeNormal spreads exposures over normal quantiles (passes a normality check)
	ShapeNormal Shape = "normal"
	// ShapeSkewed spreads exposures over exponential quantiles (fails a normality check)
	ShapeSkewed Shape = "skewed"
	// ShapeConstant gives every user the same exposure count
	ShapeConstant Shape = "constant"
)

// Config describes a synthetic two-arm experiment.
// Conversions are placed exactly: round(rate * users) users convert in each arm.
type Config struct {
	UsersPerGroup int
	Seed          int64
	Groups        experiment.GroupPair

	TreatmentRate float64
	ControlRate   float64

	Shape          Shape
	ExposureMean   float64
	ExposureSD     float64
	TreatmentShift float64

	// OverlapUsers reuses this many treatment ids in the control arm
	OverlapUsers int
}

// DefaultConfig mirrors the scale of a small ad campaign export
func DefaultConfig() Config {
	return Config{
		UsersPerGroup: 200,
		Seed:          42,
		Groups:        experiment.GroupPair{Treatment: "ad", Control: "psa"},
		TreatmentRate: 0.12,
		ControlRate:   0.10,
		Shape:         ShapeNormal,
		ExposureMean:  100,
		ExposureSD:    20,
	}
}

// Dataset is a generated experiment in both typed and tabular form
type Dataset struct {
	Headers []string
	Rows    [][]string
	Records []experiment.UserRecord
}

// Table renders the dataset as raw input, as a source adapter would deliver it
func (d *Dataset) Table() experiment.RawTable {
	t := experiment.RawTable{Headers: d.Headers, Rows: make([]experiment.RawRow, len(d.Rows))}
	for i, r := range d.Rows {
		row := make(experiment.RawRow, len(d.Headers))
		for j, h := range d.Headers {
			row[h] = r[j]
		}
		t.Rows[i] = row
	}
	return t
}

// Generate builds a deterministic dataset from cfg
func Generate(cfg Config) (*Dataset, error) {
	if cfg.UsersPerGroup <= 0 {
		return nil, fmt.Errorf("users per group must be > 0")
	}
	if cfg.OverlapUsers < 0 || cfg.OverlapUsers > cfg.UsersPerGroup {
		return nil, fmt.Errorf("overlap must be within [0, %d]", cfg.UsersPerGroup)
	}
	for _, r := range []float64{cfg.TreatmentRate, cfg.ControlRate} {
		if r < 0 || r > 1 {
			return nil, fmt.Errorf("conversion rate %v outside [0, 1]", r)
		}
	}
	if err := cfg.Groups.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	ds := &Dataset{Headers: []string{
		experiment.ColumnUserID,
		experiment.ColumnGroup,
		experiment.ColumnConverted,
		experiment.ColumnExposureAlias,
	}}

	arms := []struct {
		label  experiment.GroupLabel
		rate   float64
		shift  float64
		prefix string
	}{
		{cfg.Groups.Treatment, cfg.TreatmentRate, cfg.TreatmentShift, "t"},
		{cfg.Groups.Control, cfg.ControlRate, 0, "c"},
	}

	for armIdx, arm := range arms {
		exposures := ExposureSample(cfg.Shape, cfg.UsersPerGroup, cfg.ExposureMean+arm.shift, cfg.ExposureSD)
		rng.Shuffle(len(exposures), func(i, j int) { exposures[i], exposures[j] = exposures[j], exposures[i] })

		converted := make([]bool, cfg.UsersPerGroup)
		for i := 0; i < int(math.Round(arm.rate*float64(cfg.UsersPerGroup))); i++ {
			converted[i] = true
		}
		rng.Shuffle(len(converted), func(i, j int) { converted[i], converted[j] = converted[j], converted[i] })

		for i := 0; i < cfg.UsersPerGroup; i++ {
			id := fmt.Sprintf("%s%06d", arm.prefix, i)
			if armIdx == 1 && i < cfg.OverlapUsers {
				id = fmt.Sprintf("t%06d", i)
			}
			rec := experiment.UserRecord{
				UserID:        id,
				Group:         arm.label,
				Converted:     converted[i],
				ExposureCount: int(exposures[i]),
			}
			ds.Records = append(ds.Records, rec)
			ds.Rows = append(ds.Rows, []string{
				rec.UserID,
				rec.Group.String(),
				strconv.FormatBool(rec.Converted),
				strconv.Itoa(rec.ExposureCount),
			})
		}
	}

	return ds, nil
}

// ExposureSample returns n non-negative integer exposure counts of the given shape,
// placed on distribution quantiles so the shape does not depend on a random draw.
func ExposureSample(shape Shape, n int, mean, sd float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		q := (float64(i) + 0.5) / float64(n)
		var v float64
		switch shape {
		case ShapeSkewed:
			v = distuv.Exponential{Rate: 1 / mean}.Quantile(q)
		case ShapeConstant:
			v = mean
		default:
			v = distuv.Normal{Mu: mean, Sigma: sd}.Quantile(q)
		}
		out[i] = math.Max(0, math.Round(v))
	}
	return out
}
