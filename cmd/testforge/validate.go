package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lamim/testforge/internal/pipeline"
	"github.com/lamim/testforge/internal/report"
	"github.com/lamim/testforge/pkg/models"
)

type ioFlags struct {
	shape  string
	input  string
	format string
}

func (f *ioFlags) register(cmd *cobra.Command, inputHelp string) {
	cmd.Flags().StringVar(&f.shape, "shape", "generic", "Expected shape: test_points, test_cases or generic")
	cmd.Flags().StringVarP(&f.input, "input", "i", "-", inputHelp)
	cmd.Flags().StringVarP(&f.format, "format", "f", "table", "Output format: table, json or yaml")
}

func (f *ioFlags) parse() (models.Shape, report.Format, error) {
	shape, err := models.ParseShape(f.shape)
	if err != nil {
		return "", "", err
	}
	format, err := report.ParseFormat(f.format)
	if err != nil {
		return "", "", err
	}
	return shape, format, nil
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(data), nil
}

func newValidateCmd() *cobra.Command {
	var f ioFlags
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Extract and validate the JSON in one model response",
		Long: `Locate the JSON payload in a raw model response, diagnose syntax errors
and check its structure against the expected shape. Exits non-zero when the
response has errors.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			shape, format, err := f.parse()
			if err != nil {
				return err
			}
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			raw, err := readInput(cmd, f.input)
			if err != nil {
				return err
			}

			logger := consoleLogger(cmd)
			collector, stop := startMetrics(cfg, logger)
			defer stop()

			p := pipeline.New(cfg.Pipeline, cfg.Repair, logger, pipeline.WithMetrics(collector))
			rep := p.ExtractAndValidate(raw, shape).Report()

			out := cmd.OutOrStdout()
			if format == report.FormatTable {
				report.IssueTable(out, rep, !flags.noColor)
			} else if err := report.Encode(out, format, rep); err != nil {
				return err
			}

			if !rep.Valid {
				return errInvalid
			}
			return nil
		},
	}
	f.register(cmd, "Response file, or - for stdin")
	return cmd
}
