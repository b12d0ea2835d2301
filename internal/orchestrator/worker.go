package orchestrator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lamim/testforge/internal/config"
	"github.com/lamim/testforge/internal/pipeline"
	"github.com/lamim/testforge/internal/util"
	"github.com/lamim/testforge/pkg/models"
)

type generationJob struct {
	shape    models.Shape
	model    config.ModelConfig
	apiKey   string
	system   string
	prompt   string
	attempts int
}

type runResult struct {
	index    int
	outcome  *pipeline.Outcome
	raw      string
	attempts int
	refusals int
	err      error
}

func (o *Orchestrator) worker(
	ctx context.Context,
	workerID int,
	job generationJob,
	runs <-chan int,
	results chan<- runResult,
	wg *sync.WaitGroup,
) {
	defer wg.Done()

	workerLogger := o.logger.With("worker_id", workerID)
	workerLogger.Debug("Worker started")

	for run := range runs {
		select {
		case <-ctx.Done():
			workerLogger.Info("Worker cancelled")
			return
		default:
		}

		results <- o.processRun(ctx, workerLogger.With("run", run), job, run)
	}

	workerLogger.Debug("Worker finished")
}

// processRun calls the model until a response is usable or the attempts
// run out. The last outcome is returned either way.
func (o *Orchestrator) processRun(ctx context.Context, logger *slog.Logger, job generationJob, run int) runResult {
	result := runResult{index: run}

	for attempt := 1; attempt <= job.attempts; attempt++ {
		result.attempts = attempt

		content, err := o.client.Complete(ctx, job.model, job.apiKey, job.system, job.prompt)
		if err != nil {
			result.err = err
			return result
		}

		outcome := o.pipeline.Process(content, job.shape)
		result.outcome = outcome
		result.raw = content
		result.err = nil

		if outcome.Usable() {
			logger.Debug("Usable response",
				"attempt", attempt,
				"records", len(outcome.Repaired),
				"method", outcome.Report.Method)
			return result
		}

		if isRefusalResponse(content) {
			result.refusals++
			logger.Warn("Model refused", "attempt", attempt, "reason", getRefusalReason(content))
		} else {
			logger.Warn("Response unusable, requesting regeneration",
				"attempt", attempt,
				"max_attempts", job.attempts,
				"syntax_failure", pipeline.IsSyntaxFailure(outcome.Result),
				"first_error", firstError(outcome.Report),
				"response", util.TruncateString(content, 200))
		}

		if ctx.Err() != nil {
			return result
		}
	}

	return result
}

func firstError(report models.Report) string {
	if len(report.Errors) == 0 {
		return ""
	}
	return report.Errors[0].String()
}
