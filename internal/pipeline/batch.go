package pipeline

import (
	"context"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/lamim/testforge/pkg/models"
)

type batchTask struct {
	index int
	raw   string
	shape models.Shape
}

type batchResult struct {
	index   int
	outcome *Outcome
}

// Batch processes responses with a pool of workers and returns the outcomes
// in input order. Cancelling ctx stops workers from taking new responses and
// returns ctx.Err() together with the outcomes finished so far (nil entries
// for the rest).
func (p *Pipeline) Batch(ctx context.Context, responses []string, shape models.Shape) ([]*Outcome, error) {
	outcomes := make([]*Outcome, len(responses))
	if len(responses) == 0 {
		return outcomes, nil
	}

	workers := p.cfg.Concurrency
	if workers > len(responses) {
		workers = len(responses)
	}
	p.logger.Info("Processing responses", "total", len(responses), "workers", workers, "shape", shape)

	tasksChan := make(chan batchTask, len(responses))
	resultsChan := make(chan batchResult, len(responses))

	var wg sync.WaitGroup
	wg.Add(workers) // Add all workers before starting goroutines
	for i := 0; i < workers; i++ {
		go p.worker(ctx, i, tasksChan, resultsChan, &wg)
	}

	for i, raw := range responses {
		tasksChan <- batchTask{index: i, raw: raw, shape: shape}
	}
	close(tasksChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	var bar *progressbar.ProgressBar
	if p.progress {
		bar = progressbar.Default(int64(len(responses)), "Processing responses")
	} else {
		bar = progressbar.DefaultSilent(int64(len(responses)), "Processing responses")
	}

	invalid := 0
	for result := range resultsChan {
		outcomes[result.index] = result.outcome
		_ = bar.Add(1)
		if !result.outcome.Report.Valid {
			invalid++
		}
	}
	_ = bar.Finish()

	if err := ctx.Err(); err != nil {
		p.logger.Warn("Batch cancelled", "error", err)
		return outcomes, err
	}

	p.logger.Info("Batch complete", "total", len(responses), "invalid", invalid)
	return outcomes, nil
}

func (p *Pipeline) worker(
	ctx context.Context,
	workerID int,
	tasks <-chan batchTask,
	results chan<- batchResult,
	wg *sync.WaitGroup,
) {
	defer wg.Done()

	p.metrics.AddActiveWorkers(1)
	defer p.metrics.AddActiveWorkers(-1)

	workerLogger := p.logger.With("worker_id", workerID)
	workerLogger.Debug("Worker started")

	for task := range tasks {
		select {
		case <-ctx.Done():
			workerLogger.Debug("Worker cancelled")
			return
		default:
		}

		results <- batchResult{index: task.index, outcome: p.Process(task.raw, task.shape)}
	}

	workerLogger.Debug("Worker finished")
}
