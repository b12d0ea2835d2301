package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lamim/testforge/internal/api"
	"github.com/lamim/testforge/internal/orchestrator"
	"github.com/lamim/testforge/internal/pipeline"
	"github.com/lamim/testforge/internal/writer"
	"github.com/lamim/testforge/pkg/models"
)

func newGenerateCmd() *cobra.Command {
	var (
		shapeName       string
		requirementPath string
		businessType    string
		outputDir       string
		resumeSession   string
		noProgress      bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate test points or test cases from a requirement with the configured model",
		Long: `Render the prompt template for the shape, call the "main" model
generation.runs times, and pass every response through extraction, validation
and repair. Unusable responses are regenerated up to generation.max_regenerations
times. Results go to a session directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.configPath == "" {
				return fmt.Errorf("generate requires --config")
			}
			shape, err := models.ParseShape(shapeName)
			if err != nil {
				return err
			}
			if shape == models.ShapeGeneric {
				return fmt.Errorf("generate needs --shape test_points or test_cases")
			}

			cfg, secrets, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if outputDir == "" {
				outputDir = cfg.Generation.OutputDir
			}

			requirement, err := os.ReadFile(requirementPath)
			if err != nil {
				return fmt.Errorf("failed to read requirement: %w", err)
			}
			if strings.TrimSpace(string(requirement)) == "" {
				return fmt.Errorf("requirement file %s is empty", requirementPath)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sessionMgr, err := writer.NewSessionManager(consoleLogger(cmd), outputDir, resumeSession)
			if err != nil {
				return fmt.Errorf("failed to create session: %w", err)
			}
			logger, logFile, err := writer.SetupLogger(sessionMgr, cmd.ErrOrStderr(), logLevel())
			if err != nil {
				return fmt.Errorf("failed to setup logger: %w", err)
			}
			defer logFile.Close()

			logger.Info("Starting testforge",
				"version", Version,
				"shape", shape,
				"session", sessionMgr.GetSessionDir())

			if err := sessionMgr.BackupConfig(flags.configPath); err != nil {
				logger.Warn("Failed to backup config", "error", err)
			}

			collector, stopMetrics := startMetrics(cfg, logger)
			defer stopMetrics()

			sink, err := writer.NewOutcomeWriter(sessionMgr, logger)
			if err != nil {
				return err
			}
			defer sink.Close()

			client := api.NewClient(logger, collector)
			p := pipeline.New(cfg.Pipeline, cfg.Repair, logger, pipeline.WithMetrics(collector))

			orch := orchestrator.New(cfg, secrets, client, p, sink, logger)
			orch.SetProgress(!noProgress)
			orch.EnableCheckpoints(sessionMgr.GetSessionDir(), resumeSession != "")

			runErr := orch.Run(ctx, orchestrator.Request{
				Shape:        shape,
				Requirement:  string(requirement),
				BusinessType: businessType,
			})

			stats := orch.GetStats()
			written, rejected := sink.Counts()
			logger.Info("Generation complete",
				"runs", stats.TotalRuns,
				"resumed", stats.Resumed,
				"usable", stats.Usable,
				"unusable", stats.Unusable,
				"failed", stats.Failed,
				"refusals", stats.Refusals,
				"regenerations", stats.Regenerations,
				"records_written", written,
				"responses_rejected", rejected,
				"duration", stats.TotalDuration)

			fmt.Fprintf(cmd.OutOrStdout(), "Records written to %s\n", sessionMgr.GetRecordsPath())

			if errors.Is(runErr, context.Canceled) {
				sessionName := filepath.Base(sessionMgr.GetSessionDir())
				logger.Warn("Generation interrupted", "resume_command",
					fmt.Sprintf("testforge generate --session %s ...", sessionName))
				return fmt.Errorf("generation interrupted (resume with --session %s)", sessionName)
			}
			if runErr != nil {
				return fmt.Errorf("generation failed: %w", runErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&shapeName, "shape", string(models.ShapeTestCases), "What to generate: test_points or test_cases")
	cmd.Flags().StringVarP(&requirementPath, "requirement", "r", "", "File holding the requirement text")
	cmd.Flags().StringVar(&businessType, "business-type", "", "Business type passed to the prompt template")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Parent directory for the session (default generation.output_dir)")
	cmd.Flags().StringVar(&resumeSession, "session", "", "Append to an existing session directory name")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	_ = cmd.MarkFlagRequired("requirement")

	return cmd
}
