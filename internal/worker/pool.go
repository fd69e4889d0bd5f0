// Package worker runs independent analyses through a bounded worker pool.
package worker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MeKo-Tech/congestionmap/internal/pipeline"
)

// Analyzer is the interface for running one analysis.
// This matches the signature of pipeline.Analyzer.Analyze.
type Analyzer interface {
	Analyze(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Task represents a single analysis task.
type Task struct {
	Index   int
	Label   string
	Request pipeline.Request
}

// Result represents the outcome of an analysis task.
type Result struct {
	Task     Task
	Analysis *pipeline.Result
	Err      error
	Elapsed  time.Duration
}

// ProgressFunc is called after each task completes with that task's
// result and the running totals.
type ProgressFunc func(last Result, completed, total, failed int)

// Config configures the worker pool.
type Config struct {
	Workers    int
	Analyzer   Analyzer
	OnProgress ProgressFunc
}

// Pool manages parallel analyses.
type Pool struct {
	workers    int
	analyzer   Analyzer
	onProgress ProgressFunc
}

// New creates a new worker pool.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:    workers,
		analyzer:   cfg.Analyzer,
		onProgress: cfg.OnProgress,
	}
}

// Run executes all tasks and returns one result per task, ordered by
// Task.Index. Once ctx is cancelled the remaining tasks complete
// immediately with the context error.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	// Both channels hold every task, so neither side ever blocks.
	taskCh := make(chan Task, len(tasks))
	resultCh := make(chan Result, len(tasks))
	for _, task := range tasks {
		taskCh <- task
	}
	close(taskCh)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, taskCh, resultCh)
		}()
	}

	results := make([]Result, 0, len(tasks))
	done := make(chan struct{})
	go func() {
		failed := 0
		for result := range resultCh {
			results = append(results, result)
			if result.Err != nil {
				failed++
			}
			if p.onProgress != nil {
				p.onProgress(result, len(results), len(tasks), failed)
			}
		}
		close(done)
	}()

	wg.Wait()
	close(resultCh)
	<-done

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Task.Index < results[j].Task.Index
	})
	return results
}

// worker processes tasks from the task channel and sends results to the result channel.
func (p *Pool) worker(ctx context.Context, tasks <-chan Task, results chan<- Result) {
	for task := range tasks {
		if err := ctx.Err(); err != nil {
			results <- Result{Task: task, Err: err}
			continue
		}

		start := time.Now()
		analysis, err := p.analyzer.Analyze(ctx, task.Request)
		results <- Result{
			Task:     task,
			Analysis: analysis,
			Err:      err,
			Elapsed:  time.Since(start),
		}
	}
}
