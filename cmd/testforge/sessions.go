package main

import (
	"fmt"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lamim/testforge/internal/checkpoint"
	"github.com/lamim/testforge/internal/report"
	"github.com/lamim/testforge/internal/writer"
)

func newSessionsCmd() *cobra.Command {
	var outputDir, formatName string

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List session directories and how much they hold",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := report.ParseFormat(formatName)
			if err != nil {
				return err
			}
			sessions, err := writer.ListSessions(outputDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format != report.FormatTable {
				return report.Encode(out, format, sessions)
			}
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No session directories found.")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(out)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Session", "Records", "Reports", "Checkpoint", "Modified"})
			for _, s := range sessions {
				t.AppendRow(table.Row{s.Name, s.Records, s.Reports, checkpointStatus(filepath.Join(outputDir, s.Name)), s.ModTime.Format("2006-01-02 15:04:05")})
			}
			t.Render()
			fmt.Fprintf(out, "Resume with: testforge generate --session <name> ...\n")
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", writer.DefaultOutputDir, "Directory holding session directories")
	cmd.Flags().StringVarP(&formatName, "format", "f", "table", "Output format: table, json or yaml")
	return cmd
}

func checkpointStatus(sessionDir string) string {
	cp, err := checkpoint.Load(sessionDir, nil)
	if err != nil {
		return "-"
	}
	if cp.Complete {
		return "complete"
	}
	return fmt.Sprintf("%s %.1f%%", cp.Shape, checkpoint.GetProgressPercentage(cp))
}
