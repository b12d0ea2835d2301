package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lamim/testforge/internal/pipeline"
	"github.com/lamim/testforge/internal/report"
	"github.com/lamim/testforge/internal/writer"
	"github.com/lamim/testforge/pkg/models"
)

// maxLineBytes bounds a single JSONL input line
const maxLineBytes = 16 << 20

func newProcessCmd() *cobra.Command {
	var f ioFlags
	var outputDir string
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run a JSONL file of model responses through the full pipeline",
		Long: `Each input line is either a JSON string holding one raw response or an
object with a "response" field. Every response is extracted, validated and
repaired concurrently, and the results are written to a new session directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			shape, _, err := f.parse()
			if err != nil {
				return err
			}
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if outputDir == "" {
				outputDir = cfg.Generation.OutputDir
			}

			responses, err := readResponses(cmd, f.input)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sessionMgr, err := writer.NewSessionManager(consoleLogger(cmd), outputDir, "")
			if err != nil {
				return fmt.Errorf("failed to create session: %w", err)
			}
			logger, logFile, err := writer.SetupLogger(sessionMgr, cmd.ErrOrStderr(), logLevel())
			if err != nil {
				return fmt.Errorf("failed to setup logger: %w", err)
			}
			defer logFile.Close()

			if flags.configPath != "" {
				if err := sessionMgr.BackupConfig(flags.configPath); err != nil {
					logger.Warn("Failed to backup config", "error", err)
				}
			}

			collector, stopMetrics := startMetrics(cfg, logger)
			defer stopMetrics()

			out, err := writer.NewOutcomeWriter(sessionMgr, logger)
			if err != nil {
				return err
			}
			defer out.Close()

			p := pipeline.New(cfg.Pipeline, cfg.Repair, logger,
				pipeline.WithMetrics(collector),
				pipeline.WithProgress(!noProgress))

			outcomes, batchErr := p.Batch(ctx, responses, shape)
			return finishProcess(cmd, logger, out, sessionMgr, responses, outcomes, batchErr)
		},
	}

	f.register(cmd, "JSONL file of responses, or - for stdin")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Parent directory for the session (default generation.output_dir)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	return cmd
}

func finishProcess(
	cmd *cobra.Command,
	logger *slog.Logger,
	out *writer.OutcomeWriter,
	sessionMgr *writer.SessionManager,
	responses []string,
	outcomes []*pipeline.Outcome,
	batchErr error,
) error {
	summaries := make([]models.ProcessingSummary, 0, len(outcomes))
	usable := 0
	for i, outcome := range outcomes {
		if outcome == nil {
			continue
		}
		if err := out.WriteOutcome(outcome, responses[i]); err != nil {
			return err
		}
		if outcome.Usable() {
			usable++
			summaries = append(summaries, outcome.Summary)
		}
	}

	written, rejected := out.Counts()
	logger.Info("Processing complete",
		"responses", len(responses),
		"usable", usable,
		"records_written", written,
		"responses_rejected", rejected,
		"session", sessionMgr.GetSessionDir())

	w := cmd.OutOrStdout()
	report.SummaryTable(w, "Batch summary", report.MergeSummaries(summaries), !flags.noColor)
	fmt.Fprintf(w, "%d/%d responses usable, %d records written to %s\n",
		usable, len(responses), written, sessionMgr.GetRecordsPath())

	if batchErr != nil {
		if errors.Is(batchErr, context.Canceled) {
			return fmt.Errorf("interrupted: %w", batchErr)
		}
		return batchErr
	}
	return nil
}

// readResponses parses a JSONL file where each non-blank line is a JSON
// string or an object with a "response" field
func readResponses(cmd *cobra.Command, path string) ([]string, error) {
	var r io.Reader
	if path == "" || path == "-" {
		r = cmd.InOrStdin()
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		defer file.Close()
		r = file
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var responses []string
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		response, err := parseResponseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		responses = append(responses, response)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return responses, nil
}

func parseResponseLine(line string) (string, error) {
	var s string
	if err := json.Unmarshal([]byte(line), &s); err == nil {
		return s, nil
	}

	var obj struct {
		Response *string `json:"response"`
	}
	if err := json.Unmarshal([]byte(line), &obj); err != nil {
		return "", fmt.Errorf("expected a JSON string or an object with a response field: %w", err)
	}
	if obj.Response == nil {
		return "", fmt.Errorf("object has no response field")
	}
	return *obj.Response, nil
}
