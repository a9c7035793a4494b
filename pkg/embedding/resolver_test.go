package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"ai-sales-agent-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	spec ModelSpec
	err  error
}

func (m *fakeModel) Spec() ModelSpec { return m.spec }

func (m *fakeModel) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type fakeLoader struct {
	mu          sync.Mutex
	accelerator bool
	failures    map[string]error // keyed by ModelSpec.String()
	attempts    []ModelSpec
	releases    int
}

func (l *fakeLoader) Load(_ context.Context, spec ModelSpec) (Model, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = append(l.attempts, spec)
	if err, ok := l.failures[spec.String()]; ok {
		return nil, err
	}
	return &fakeModel{spec: spec}, nil
}

func (l *fakeLoader) AcceleratorAvailable() bool { return l.accelerator }

func (l *fakeLoader) ReleaseAccelerator(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.releases++
	return nil
}

var testLadder = Ladder{
	Preferred:   "e5-large",
	Medium:      "e5-base",
	Small:       "minilm",
	QueryPrefix: "query: ",
}

func specOf(name string, d Device, p Precision) string {
	return ModelSpec{Name: name, Device: d, Precision: p}.String()
}

func oom() error {
	return fmt.Errorf("%w: cudaMalloc failed", ErrResourceExhausted)
}

func TestResolvePreferredModelFirst(t *testing.T) {
	loader := &fakeLoader{accelerator: true}
	r := NewResolver(loader, testLadder, logger.NewNopLogger())

	h, err := r.Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "e5-large", h.Spec().Name)
	assert.Equal(t, DeviceAccelerator, h.Spec().Device)
	assert.Equal(t, PrecisionFull, h.Spec().Precision)
	assert.Len(t, loader.attempts, 1)
}

func TestResolveUsesCPUWithoutAccelerator(t *testing.T) {
	loader := &fakeLoader{}
	r := NewResolver(loader, testLadder, logger.NewNopLogger())

	h, err := r.Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, DeviceCPU, h.Spec().Device)
}

func TestResolveExhaustionThenMediumNeverTriesSmall(t *testing.T) {
	loader := &fakeLoader{
		accelerator: true,
		failures: map[string]error{
			specOf("e5-large", DeviceAccelerator, PrecisionFull): oom(),
			specOf("e5-large", DeviceAccelerator, PrecisionHalf): oom(),
		},
	}
	r := NewResolver(loader, testLadder, logger.NewNopLogger())

	h, err := r.Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "e5-base", h.Spec().Name)
	assert.Equal(t, PrecisionHalf, h.Spec().Precision)
	require.Len(t, loader.attempts, 3)
	for _, a := range loader.attempts {
		assert.NotEqual(t, "minilm", a.Name)
	}
	assert.Equal(t, 2, loader.releases)
}

func TestResolveGenericFailureSkipsHalfPrecision(t *testing.T) {
	loader := &fakeLoader{
		accelerator: true,
		failures: map[string]error{
			specOf("e5-large", DeviceAccelerator, PrecisionFull): errors.New("model not found"),
		},
	}
	r := NewResolver(loader, testLadder, logger.NewNopLogger())

	h, err := r.Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "minilm", h.Spec().Name)
	assert.Equal(t, DeviceCPU, h.Spec().Device)
	assert.Empty(t, h.Spec().QueryPrefix)
	assert.Len(t, loader.attempts, 2)
	assert.Zero(t, loader.releases)
}

func TestResolveTotalFailureReturnsExhaustedOnce(t *testing.T) {
	loader := &fakeLoader{
		accelerator: true,
		failures: map[string]error{
			specOf("e5-large", DeviceAccelerator, PrecisionFull): oom(),
			specOf("e5-large", DeviceAccelerator, PrecisionHalf): oom(),
			specOf("e5-base", DeviceAccelerator, PrecisionHalf):  oom(),
			specOf("minilm", DeviceCPU, PrecisionFull):           errors.New("disk full"),
		},
	}
	r := NewResolver(loader, testLadder, logger.NewNopLogger())

	h, err := r.Resolve(context.Background())

	assert.Nil(t, h)
	require.ErrorIs(t, err, ErrLadderExhausted)
	assert.ErrorIs(t, err, ErrResourceExhausted)
	assert.Len(t, loader.attempts, 4)

	status := r.Status()
	assert.False(t, status.Ready)
	assert.Contains(t, status.LastError, "disk full")
}

func TestResolveConcurrentCallersLoadOnce(t *testing.T) {
	loader := &fakeLoader{}
	r := NewResolver(loader, testLadder, logger.NewNopLogger())

	var wg sync.WaitGroup
	handles := make([]*Handle, 8)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := r.Resolve(context.Background())
			assert.NoError(t, err)
			handles[i] = h
		}(i)
	}
	wg.Wait()

	assert.Len(t, loader.attempts, 1)
	for _, h := range handles {
		assert.Same(t, handles[0], h)
	}
}

func TestInvalidateRestartsAtFirstRung(t *testing.T) {
	loader := &fakeLoader{}
	r := NewResolver(loader, testLadder, logger.NewNopLogger())

	first, err := r.Resolve(context.Background())
	require.NoError(t, err)

	r.Invalidate(first)
	assert.False(t, r.Status().Ready)

	second, err := r.Resolve(context.Background())
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, "e5-large", second.Spec().Name)
	assert.Len(t, loader.attempts, 2)
}

func TestInvalidateIgnoresStaleHandle(t *testing.T) {
	loader := &fakeLoader{}
	r := NewResolver(loader, testLadder, logger.NewNopLogger())

	stale, err := r.Resolve(context.Background())
	require.NoError(t, err)
	r.Invalidate(stale)
	live, err := r.Resolve(context.Background())
	require.NoError(t, err)

	r.Invalidate(stale)

	assert.True(t, r.Status().Ready)
	again, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Same(t, live, again)
}

func TestEmbedQueryAppliesPrefix(t *testing.T) {
	var seen []string
	model := &recordingModel{spec: ModelSpec{Name: "e5-large", QueryPrefix: "query: "}, seen: &seen}
	h := &Handle{model: model}

	vec, err := h.EmbedQuery(context.Background(), "assurance auto")
	require.NoError(t, err)

	assert.Equal(t, []string{"query: assurance auto"}, seen)
	assert.Len(t, vec, 2)
}

type recordingModel struct {
	spec ModelSpec
	seen *[]string
}

func (m *recordingModel) Spec() ModelSpec { return m.spec }

func (m *recordingModel) Embed(_ context.Context, texts []string) ([][]float32, error) {
	*m.seen = append(*m.seen, texts...)
	return [][]float32{{0.6, 0.8}}, nil
}

// cancelOnLoad cancels the caller's context during the first load, as a
// client disconnect mid-request would.
type cancelOnLoad struct {
	fakeLoader
	cancel context.CancelFunc
}

func (l *cancelOnLoad) Load(ctx context.Context, spec ModelSpec) (Model, error) {
	l.mu.Lock()
	l.attempts = append(l.attempts, spec)
	l.mu.Unlock()
	l.cancel()
	return nil, fmt.Errorf("load %s: %w", spec.Name, ctx.Err())
}

func TestResolveCancelledCallerDoesNotExhaustLadder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loader := &cancelOnLoad{cancel: cancel}
	r := NewResolver(loader, testLadder, logger.NewNopLogger())

	h, err := r.Resolve(ctx)

	assert.Nil(t, h)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrLadderExhausted)
	assert.Len(t, loader.attempts, 1)

	status := r.Status()
	assert.False(t, status.Ready)
	assert.Empty(t, status.LastError)

	// a later caller with a live context runs the ladder from the top
	ok := &fakeLoader{}
	r.loader = ok
	h, err = r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "e5-large", h.Spec().Name)
}
