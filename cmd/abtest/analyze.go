package main

import (
	"context"
	"os"

	"abtest/adapters/source"
	"abtest/app"
	"abtest/domain/experiment"
	"abtest/internal"
	"abtest/internal/config"
	"abtest/internal/errors"
	"abtest/internal/report"

	"github.com/spf13/cobra"
)

type analyzeOptions struct {
	alpha     float64
	treatment string
	control   string
	metrics   string
	extended  []string
	format    string
	source    string
	query     string
}

func newAnalyzeCmd(logger *internal.Logger) *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Analyze an experiment export (CSV, XLSX or a PostgreSQL query)",
		Long: `Aggregate per-group metrics, test conversion and exposure differences, and print conclusions.

Flags override the environment (ANALYSIS_ALPHA, TREATMENT_GROUP, CONTROL_GROUP, METRICS_FILE,
EXTENDED_COLUMNS, SOURCE_KIND, DATA_FILE, DATABASE_URL, SOURCE_QUERY).

Example: abtest analyze marketing_AB.csv --treatment ad --control psa --format markdown`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			applyAnalyzeFlags(cmd, cfg, opts, args)
			if err := config.Validate(cfg); err != nil {
				return err
			}
			format, err := report.ParseFormat(opts.format)
			if err != nil {
				return errors.InvalidInput(err.Error())
			}
			return runAnalyze(cmd.Context(), cfg, format, logger)
		},
	}

	cmd.Flags().Float64Var(&opts.alpha, "alpha", config.DefaultAlpha, "Significance level for every threshold and the interval level")
	cmd.Flags().StringVar(&opts.treatment, "treatment", "", "Treatment group label")
	cmd.Flags().StringVar(&opts.control, "control", "", "Control group label")
	cmd.Flags().StringVar(&opts.metrics, "metrics", "", "YAML aggregation schema")
	cmd.Flags().StringSliceVar(&opts.extended, "extended", nil, "Extra numeric columns to aggregate")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text, json, markdown or html")
	cmd.Flags().StringVar(&opts.source, "source", "", "Input source: file or postgres")
	cmd.Flags().StringVar(&opts.query, "query", "", "SQL query for the postgres source")

	return cmd
}

func applyAnalyzeFlags(cmd *cobra.Command, cfg *config.Config, opts analyzeOptions, args []string) {
	flags := cmd.Flags()
	if flags.Changed("alpha") {
		cfg.Analysis.Alpha = opts.alpha
	}
	if opts.treatment != "" {
		cfg.Analysis.TreatmentGroup = opts.treatment
	}
	if opts.control != "" {
		cfg.Analysis.ControlGroup = opts.control
	}
	if opts.metrics != "" {
		cfg.Schema.MetricsFile = opts.metrics
	}
	if len(opts.extended) > 0 {
		cfg.Schema.ExtendedColumns = opts.extended
	}
	if opts.source != "" {
		cfg.Source.Kind = opts.source
	}
	if opts.query != "" {
		cfg.Source.Query = opts.query
	}
	if len(args) == 1 {
		cfg.Source.DataFile = args[0]
	}
}

func runAnalyze(ctx context.Context, cfg *config.Config, format report.Format, logger *internal.Logger) error {
	table, err := readSource(ctx, cfg.Source, logger)
	if err != nil {
		return err
	}

	svc, err := app.NewAnalysisService(cfg, logger)
	if err != nil {
		return err
	}

	rep, err := svc.Run(ctx, table)
	if err != nil {
		return err
	}
	return report.Render(os.Stdout, rep, format)
}

func readSource(ctx context.Context, cfg config.SourceConfig, logger *internal.Logger) (experiment.RawTable, error) {
	switch cfg.Kind {
	case "postgres":
		db, err := source.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return experiment.RawTable{}, errors.ExternalServiceError("postgres", err)
		}
		defer db.Close()
		table, err := source.NewPostgresReader(db, cfg.Query, logger).Read(ctx)
		if err != nil {
			return experiment.RawTable{}, errors.ExternalServiceError("postgres", err)
		}
		return table, nil
	default:
		if cfg.DataFile == "" {
			return experiment.RawTable{}, errors.InvalidInput("no input file: pass a path or set DATA_FILE")
		}
		table, err := source.NewFileReader(cfg.DataFile, logger).Read(ctx)
		if err != nil {
			return experiment.RawTable{}, errors.Wrapf(err, "failed to read %s", cfg.DataFile)
		}
		return table, nil
	}
}
