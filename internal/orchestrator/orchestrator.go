// Package orchestrator drives generation: it renders prompts, calls the
// model, runs every response through the pipeline and hands usable outcomes
// to a sink, requesting a regeneration when a response cannot be used.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/lamim/testforge/internal/checkpoint"
	"github.com/lamim/testforge/internal/config"
	"github.com/lamim/testforge/internal/pipeline"
	"github.com/lamim/testforge/internal/util"
	"github.com/lamim/testforge/pkg/models"
)

// Completer is the LLM caller
type Completer interface {
	Complete(ctx context.Context, modelCfg config.ModelConfig, apiKey, systemPrompt, userPrompt string) (string, error)
}

// Sink receives every final outcome together with the response it came from
type Sink interface {
	WriteOutcome(outcome *pipeline.Outcome, rawResponse string) error
}

// Request describes what to generate
type Request struct {
	Shape        models.Shape
	Requirement  string
	BusinessType string
}

// Stats summarises one Run
type Stats struct {
	StartTime     time.Time     `json:"start_time"`
	TotalRuns     int           `json:"total_runs"`
	Resumed       int           `json:"resumed"`
	Usable        int           `json:"usable"`
	Unusable      int           `json:"unusable"`
	Failed        int           `json:"failed"`
	Refusals      int           `json:"refusals"`
	Regenerations int           `json:"regenerations"`
	Records       int           `json:"records"`
	TotalDuration time.Duration `json:"total_duration"`
}

// Orchestrator manages the generation runs of one invocation
type Orchestrator struct {
	cfg      *config.Config
	secrets  *config.Secrets
	client   Completer
	pipeline *pipeline.Pipeline
	sink     Sink
	logger   *slog.Logger
	progress bool

	sessionDir string
	resume     bool
	checkpoint *checkpoint.Manager

	mu    sync.Mutex
	stats Stats
}

// New creates a new orchestrator
func New(
	cfg *config.Config,
	secrets *config.Secrets,
	client Completer,
	p *pipeline.Pipeline,
	sink Sink,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if secrets == nil {
		secrets = &config.Secrets{APIKeys: map[string]string{}}
	}
	return &Orchestrator{
		cfg:      cfg,
		secrets:  secrets,
		client:   client,
		pipeline: p,
		sink:     sink,
		logger:   logger.With("component", "orchestrator"),
	}
}

// SetProgress toggles the progress bar
func (o *Orchestrator) SetProgress(enabled bool) {
	o.progress = enabled
}

// EnableCheckpoints records finished runs in sessionDir. With resume set, Run
// continues the checkpoint already stored there and skips its finished runs.
func (o *Orchestrator) EnableCheckpoints(sessionDir string, resume bool) {
	o.sessionDir = sessionDir
	o.resume = resume
}

// Run renders the prompt for req and performs generation.runs model calls
// with up to pipeline.concurrency in flight.
func (o *Orchestrator) Run(ctx context.Context, req Request) error {
	modelCfg, err := o.cfg.Model(config.MainModel)
	if err != nil {
		return err
	}

	prompt, err := util.RenderTemplate(o.cfg.PromptTemplates.ForShape(req.Shape), map[string]any{
		"Requirement":  req.Requirement,
		"BusinessType": req.BusinessType,
		"Count":        o.cfg.Generation.RecordsPerResponse,
	})
	if err != nil {
		return fmt.Errorf("failed to render %s prompt: %w", req.Shape, err)
	}

	runs := o.cfg.Generation.Runs
	pending := make([]int, runs)
	for i := range pending {
		pending[i] = i
	}

	if o.sessionDir != "" {
		fingerprint := checkpoint.Fingerprint(req.Shape, modelCfg.ModelName, prompt)
		if err := o.openCheckpoint(req.Shape, fingerprint, runs); err != nil {
			return err
		}
		defer o.closeCheckpoint()
		pending = o.checkpoint.PendingRuns()
	}

	o.mu.Lock()
	o.stats = Stats{StartTime: time.Now(), TotalRuns: len(pending), Resumed: runs - len(pending)}
	o.mu.Unlock()

	o.logger.Info("Starting generation",
		"shape", req.Shape,
		"runs", len(pending),
		"already_completed", runs-len(pending),
		"model", modelCfg.ModelName,
		"provider", config.GetProviderName(modelCfg.BaseURL),
		"prompt_length", len(prompt))

	if len(pending) == 0 {
		return nil
	}

	job := generationJob{
		shape:    req.Shape,
		model:    modelCfg,
		apiKey:   o.secrets.GetAPIKey(modelCfg.BaseURL),
		system:   o.cfg.PromptTemplates.SystemPrompt,
		prompt:   prompt,
		attempts: 1 + o.cfg.Generation.MaxRegenerations,
	}

	workers := o.cfg.Pipeline.Concurrency
	if workers > len(pending) {
		workers = len(pending)
	}

	jobs := make(chan int, len(pending))
	results := make(chan runResult, len(pending))

	var wg sync.WaitGroup
	wg.Add(workers) // Add all workers before starting goroutines
	for i := 0; i < workers; i++ {
		go o.worker(ctx, i, job, jobs, results, &wg)
	}

	for _, run := range pending {
		jobs <- run
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	o.collectResults(results, len(pending))

	o.mu.Lock()
	o.stats.TotalDuration = time.Since(o.stats.StartTime)
	usable := o.stats.Usable
	o.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if usable == 0 {
		return fmt.Errorf("no usable response in %d runs", len(pending))
	}
	return nil
}

// openCheckpoint starts or resumes the session checkpoint
func (o *Orchestrator) openCheckpoint(shape models.Shape, fingerprint string, runs int) error {
	interval := o.cfg.Generation.CheckpointInterval
	if !o.resume {
		o.checkpoint = checkpoint.NewManager(o.sessionDir, shape, fingerprint, runs, interval, o.logger)
		return nil
	}

	cp, err := checkpoint.Load(o.sessionDir, o.logger)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if err := checkpoint.ValidateCheckpoint(cp, shape, fingerprint); err != nil {
		return fmt.Errorf("checkpoint validation failed: %w", err)
	}
	if cp.TotalRuns != runs {
		o.logger.Info("Run count changed since the checkpoint", "checkpoint_runs", cp.TotalRuns, "runs", runs)
		cp.TotalRuns = runs
	}
	o.checkpoint = checkpoint.NewManagerFromCheckpoint(o.sessionDir, cp, interval, o.logger)
	o.logger.Info("Resuming from checkpoint",
		"completed_runs", len(cp.CompletedRuns),
		"progress", fmt.Sprintf("%.1f%%", checkpoint.GetProgressPercentage(cp)))
	return nil
}

func (o *Orchestrator) closeCheckpoint() {
	if err := o.checkpoint.Finish(); err != nil {
		o.logger.Error("Failed to save final checkpoint", "error", err)
	}
	if err := o.checkpoint.Close(); err != nil {
		o.logger.Error("Checkpoint writer failed", "error", err)
	}
}

func (o *Orchestrator) collectResults(results <-chan runResult, runs int) {
	var bar *progressbar.ProgressBar
	if o.progress {
		bar = progressbar.Default(int64(runs), "Generating")
	} else {
		bar = progressbar.DefaultSilent(int64(runs), "Generating")
	}

	for result := range results {
		o.mu.Lock()
		o.stats.Regenerations += result.attempts - 1
		o.stats.Refusals += result.refusals
		switch {
		case result.err != nil:
			o.stats.Failed++
			o.logger.Error("Run failed", "run", result.index, "error", result.err)
		case result.outcome.Usable():
			o.stats.Usable++
			o.stats.Records += len(result.outcome.Repaired)
		default:
			o.stats.Unusable++
			o.logger.Warn("Run produced no usable response",
				"run", result.index,
				"attempts", result.attempts,
				"errors", len(result.outcome.Report.Errors))
		}
		o.mu.Unlock()

		var writeErr error
		if result.outcome != nil && o.sink != nil {
			if writeErr = o.sink.WriteOutcome(result.outcome, result.raw); writeErr != nil {
				o.logger.Error("Failed to write outcome, run stays pending", "run", result.index, "error", writeErr)
			}
		}

		if result.err == nil && writeErr == nil && o.checkpoint != nil {
			if err := o.checkpoint.MarkRunComplete(result.index, result.outcome.Usable(), len(result.outcome.Repaired)); err != nil {
				o.logger.Error("Failed to update checkpoint", "run", result.index, "error", err)
			}
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()
}

// GetStats returns a copy of the current statistics
func (o *Orchestrator) GetStats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}
