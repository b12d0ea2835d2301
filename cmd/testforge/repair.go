package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lamim/testforge/internal/pipeline"
	"github.com/lamim/testforge/internal/report"
	"github.com/lamim/testforge/pkg/models"
)

func newRepairCmd() *cobra.Command {
	var f ioFlags
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Repair already-parsed records into complete, schema-valid form",
		Long: `Read a JSON document holding records (an array, a single object, or an
object with a test_points/test_cases array) and fill, convert and normalize
every field. Records are never rejected.`,
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

			var data any
			if err := json.Unmarshal([]byte(raw), &data); err != nil {
				return fmt.Errorf("input is not valid JSON (run validate for a diagnosis): %w", err)
			}

			logger := consoleLogger(cmd)
			collector, stop := startMetrics(cfg, logger)
			defer stop()

			p := pipeline.New(cfg.Pipeline, cfg.Repair, logger, pipeline.WithMetrics(collector))
			result := p.Repair(unwrapRecords(data, shape), shape)

			out := cmd.OutOrStdout()
			if format != report.FormatTable {
				return report.Encode(out, format, result)
			}

			if err := report.Encode(out, report.FormatJSON, result.Repaired); err != nil {
				return err
			}
			fmt.Fprintln(out)
			report.SummaryTable(out, "Repair summary", result.Summary, !flags.noColor)
			report.LogTable(out, result.Logs, !flags.noColor)
			return nil
		},
	}
	f.register(cmd, "JSON file, or - for stdin")
	return cmd
}

// unwrapRecords returns the record array when data is the shape's envelope
func unwrapRecords(data any, shape models.Shape) any {
	obj, ok := data.(map[string]any)
	if !ok {
		return data
	}
	for _, key := range []string{shape.ArrayKey(), models.ShapeTestCases.ArrayKey(), models.ShapeTestPoints.ArrayKey()} {
		if key == "" {
			continue
		}
		if arr, ok := obj[key].([]any); ok {
			return arr
		}
	}
	return data
}
