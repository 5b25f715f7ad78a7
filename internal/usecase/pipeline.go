package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"ForecastPoster/internal/domain"
	"ForecastPoster/internal/ports"
)

// CycleResult summarises how a cycle ended.
type CycleResult string

const (
	ResultSkipped   CycleResult = "skipped"
	ResultNoRun     CycleResult = "no_run"
	ResultUnchanged CycleResult = "unchanged"
	ResultNoImages  CycleResult = "no_images"
	ResultPublished CycleResult = "published"
	ResultFailed    CycleResult = "failed"
)

const (
	phaseIdle int32 = iota
	phaseRunning
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Locator   ports.RunLocator
	Selector  ports.ImageSelector
	State     ports.StateStore
	Publisher ports.Publisher
	Metrics   ports.Metrics
	Logger    *slog.Logger
	Mode      PostMode
	MaxImages int
}

// Pipeline runs one poll-compare-publish-record cycle at a time.
type Pipeline struct {
	locator   ports.RunLocator
	selector  ports.ImageSelector
	state     ports.StateStore
	publisher ports.Publisher
	metrics   ports.Metrics
	logger    *slog.Logger
	mode      PostMode
	maxImages int

	phase atomic.Int32
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	mode := deps.Mode
	if mode == "" {
		mode = ModeBatch
	}
	maxImages := deps.MaxImages
	if maxImages <= 0 || maxImages > MaxImagesPerPost {
		maxImages = MaxImagesPerPost
	}
	return &Pipeline{
		locator:   deps.Locator,
		selector:  deps.Selector,
		state:     deps.State,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		logger:    logger,
		mode:      mode,
		maxImages: maxImages,
	}
}

// Running reports whether a cycle is in progress.
func (p *Pipeline) Running() bool {
	return p.phase.Load() == phaseRunning
}

// RunCycle executes a single cycle. A call that overlaps a running cycle
// returns ResultSkipped immediately. Panics are recovered into errors.
func (p *Pipeline) RunCycle(ctx context.Context) (result CycleResult, err error) {
	if !p.phase.CompareAndSwap(phaseIdle, phaseRunning) {
		p.logger.Info("cycle skipped, previous cycle still running")
		return ResultSkipped, nil
	}
	defer p.phase.Store(phaseIdle)

	started := time.Now()
	if p.metrics != nil {
		p.metrics.CycleStarted()
	}
	defer func() {
		if r := recover(); r != nil {
			result = ResultFailed
			err = fmt.Errorf("cycle panic: %v", r)
			p.logger.Error("cycle panicked", "panic", r, "stack", string(debug.Stack()))
		}
		if p.metrics != nil {
			p.metrics.CycleFinished(string(result), time.Since(started))
		}
	}()

	result, err = p.runCycle(ctx)
	if err != nil {
		p.logger.Error("cycle failed", "error", err, "elapsed", time.Since(started))
		return ResultFailed, err
	}
	p.logger.Info("cycle finished", "result", result, "elapsed", time.Since(started))
	return result, nil
}

func (p *Pipeline) runCycle(ctx context.Context) (CycleResult, error) {
	run, err := p.locator.FindLatestRun(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		p.logger.Info("no forecast run listed")
		return ResultNoRun, nil
	}
	if err != nil {
		return ResultFailed, fmt.Errorf("locate run: %w", err)
	}
	log := p.logger.With("run_id", run.ID)

	stored, err := p.state.Read(ctx)
	if err != nil {
		return ResultFailed, fmt.Errorf("read state: %w", err)
	}
	if sameRun(run.ID, stored) {
		log.Debug("run already processed")
		return ResultUnchanged, nil
	}
	log.Info("new run detected", "previous", stored, "url", run.URL)

	images, err := p.selector.FindImages(ctx, run.URL)
	if err != nil {
		return ResultFailed, fmt.Errorf("select images for %s: %w", run.ID, err)
	}
	if len(images) == 0 {
		log.Info("run has no publishable images, marking processed")
		if err := p.state.Write(ctx, run.ID); err != nil {
			return ResultFailed, fmt.Errorf("write state: %w", err)
		}
		return ResultNoImages, nil
	}

	if err := p.publish(ctx, run, images); err != nil {
		return ResultFailed, fmt.Errorf("run %s: %w", run.ID, err)
	}

	if err := p.state.Write(ctx, run.ID); err != nil {
		return ResultFailed, fmt.Errorf("write state: %w", err)
	}
	return ResultPublished, nil
}

// publish sends one batched post, or one post per image in per-image mode.
// In per-image mode the first failure stops the run.
func (p *Pipeline) publish(ctx context.Context, run domain.RunLocation, images []domain.ImageReference) error {
	if p.mode != ModePerImage {
		return p.publisher.Publish(ctx, run, images)
	}

	for i, img := range SelectImages(images, p.maxImages) {
		if err := p.publisher.Publish(ctx, run, []domain.ImageReference{img}); err != nil {
			return fmt.Errorf("image %d %s: %w", i+1, img.Filename(), err)
		}
	}
	return nil
}

func sameRun(a, b domain.RunIdentifier) bool {
	if a.IsZero() && b.IsZero() {
		return true
	}
	return a == b
}
