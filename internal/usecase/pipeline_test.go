package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForecastPoster/internal/domain"
)

type pipelineFixture struct {
	locator   *fakeLocator
	selector  *fakeSelector
	state     *memoryState
	publisher *fakePublisher
	pipeline  *Pipeline
}

func newFixture(mode PostMode) *pipelineFixture {
	f := &pipelineFixture{
		locator:   &fakeLocator{run: testRun},
		selector:  &fakeSelector{images: refs("tornado.png")},
		state:     &memoryState{},
		publisher: &fakePublisher{},
	}
	f.pipeline = NewPipeline(PipelineDeps{
		Locator:   f.locator,
		Selector:  f.selector,
		State:     f.state,
		Publisher: f.publisher,
		Mode:      mode,
	})
	return f
}

func TestCycleNoRun(t *testing.T) {
	t.Parallel()

	f := newFixture(ModeBatch)
	f.locator.err = domain.ErrNotFound

	res, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResultNoRun, res)
	assert.Zero(t, f.selector.calls)
	assert.Zero(t, f.state.writes)
}

func TestCycleUnchangedDoesNotWrite(t *testing.T) {
	t.Parallel()

	f := newFixture(ModeBatch)
	f.state.id = testRun.ID

	res, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResultUnchanged, res)
	assert.Zero(t, f.selector.calls)
	assert.Empty(t, f.publisher.calls)
	assert.Zero(t, f.state.writes)
}

func TestCycleEmptyIdentifiersAreEqual(t *testing.T) {
	t.Parallel()

	f := newFixture(ModeBatch)
	f.locator.run = domain.RunLocation{ID: " ", URL: "https://example.org/"}

	res, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResultUnchanged, res)
}

func TestCycleNoImagesMarksProcessed(t *testing.T) {
	t.Parallel()

	f := newFixture(ModeBatch)
	f.selector.images = nil

	res, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResultNoImages, res)
	assert.Empty(t, f.publisher.calls)
	assert.Equal(t, testRun.ID, f.state.id)
	assert.Equal(t, 1, f.state.writes)
}

func TestCyclePublishSuccessWritesState(t *testing.T) {
	t.Parallel()

	f := newFixture(ModeBatch)
	f.state.id = "20250407_t12z"

	res, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResultPublished, res)
	assert.Len(t, f.publisher.calls, 1)
	assert.Equal(t, testRun.ID, f.state.id)
}

func TestCyclePublishFailureKeepsState(t *testing.T) {
	t.Parallel()

	f := newFixture(ModeBatch)
	f.state.id = "20250407_t12z"
	f.publisher.err = &PublishError{Stage: StageSubmit, Err: errors.New("boom")}

	res, err := f.pipeline.RunCycle(context.Background())
	require.Error(t, err)
	assert.Equal(t, ResultFailed, res)
	assert.Equal(t, domain.RunIdentifier("20250407_t12z"), f.state.id)
	assert.Zero(t, f.state.writes)

	f.publisher.err = nil
	res, err = f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResultPublished, res)
	assert.Len(t, f.publisher.calls, 2)
}

func TestCycleStateReadErrorAborts(t *testing.T) {
	t.Parallel()

	f := newFixture(ModeBatch)
	f.state.readErr = &domain.StateIOError{Op: "read", Path: "x", Err: errors.New("permission denied")}

	res, err := f.pipeline.RunCycle(context.Background())
	require.Error(t, err)
	assert.Equal(t, ResultFailed, res)
	assert.Zero(t, f.selector.calls)
}

func TestCycleStateWriteErrorReported(t *testing.T) {
	t.Parallel()

	f := newFixture(ModeBatch)
	f.state.writeErr = errors.New("read-only file system")

	res, err := f.pipeline.RunCycle(context.Background())
	require.Error(t, err)
	assert.Equal(t, ResultFailed, res)
}

func TestCycleRecoversPanic(t *testing.T) {
	t.Parallel()

	f := newFixture(ModeBatch)
	f.publisher.hook = func() { panic("unexpected") }

	res, err := f.pipeline.RunCycle(context.Background())
	require.Error(t, err)
	assert.Equal(t, ResultFailed, res)
	assert.False(t, f.pipeline.Running())

	f.publisher.hook = nil
	res, err = f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResultPublished, res)
}

func TestCycleSkipsWhenRunning(t *testing.T) {
	t.Parallel()

	f := newFixture(ModeBatch)
	var inner CycleResult
	f.publisher.hook = func() {
		inner, _ = f.pipeline.RunCycle(context.Background())
	}

	res, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResultPublished, res)
	assert.Equal(t, ResultSkipped, inner)
	assert.Len(t, f.publisher.calls, 1)
}

func TestCyclePerImageMode(t *testing.T) {
	t.Parallel()

	f := newFixture(ModePerImage)
	f.selector.images = refs("tornado_a.png", "sig_tornado.png", "tornado_b.png")

	res, err := f.pipeline.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResultPublished, res)
	require.Len(t, f.publisher.calls, 3)
	assert.Equal(t, refs("sig_tornado.png"), f.publisher.calls[0])
	assert.Equal(t, refs("tornado_a.png"), f.publisher.calls[1])
}

func TestCyclePerImageFailureKeepsState(t *testing.T) {
	t.Parallel()

	f := newFixture(ModePerImage)
	f.publisher.err = errors.New("submit failed")

	_, err := f.pipeline.RunCycle(context.Background())
	require.Error(t, err)
	assert.True(t, f.state.id.IsZero())
}

// End to end through the real publisher: stored 20250407_t12z, five images
// found, the two sig_ images and two of the three plain ones are posted.
func TestCycleEndToEndCapAndPriority(t *testing.T) {
	t.Parallel()

	social := &fakeSocial{}
	fetcher := &fakeFetcher{}
	state := &memoryState{id: "20250407_t12z"}
	images := refs("tornado_1.png", "sig_tornado_1.png", "tornado_2.png", "sig_tornado_2.png", "tornado_3.png")

	p := NewPipeline(PipelineDeps{
		Locator:   &fakeLocator{run: testRun},
		Selector:  &fakeSelector{images: images},
		State:     state,
		Publisher: newTestPublisher(social, fetcher, ModeBatch),
	})

	res, err := p.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResultPublished, res)
	assert.Equal(t, domain.RunIdentifier("20250408_t00z"), state.id)
	require.Len(t, social.posts, 1)
	assert.Equal(t, []string{
		"img:https://example.org/run/sig_tornado_1.png",
		"img:https://example.org/run/sig_tornado_2.png",
		"img:https://example.org/run/tornado_1.png",
		"img:https://example.org/run/tornado_2.png",
	}, social.uploads)
}
