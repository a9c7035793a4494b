package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ai-sales-agent-be/internal/pkg/logger"
)

const module = "EMBEDDING"

// Ladder names the three models the resolver may fall back through.
type Ladder struct {
	Preferred   string
	Medium      string
	Small       string
	QueryPrefix string
}

// Status is the operator view of the resolver.
type Status struct {
	Ready      bool       `json:"ready"`
	Model      *ModelSpec `json:"model,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

// Resolver owns the single live embedding handle of the process.
type Resolver struct {
	loader Loader
	ladder Ladder
	logger logger.ILogger

	mu      sync.Mutex
	handle  *Handle
	lastErr error
}

func NewResolver(loader Loader, ladder Ladder, log logger.ILogger) *Resolver {
	return &Resolver{
		loader: loader,
		ladder: ladder,
		logger: log,
	}
}

// Resolve returns the cached handle or runs the fallback ladder. The lock is
// held for the whole ladder so concurrent first callers load only once.
func (r *Resolver) Resolve(ctx context.Context) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.handle != nil {
		return r.handle, nil
	}

	model, err := r.runLadder(ctx)
	if err != nil {
		// An abandoned caller says nothing about the models.
		if ctx.Err() == nil {
			r.lastErr = err
		}
		return nil, err
	}

	r.handle = &Handle{model: model, resolvedAt: time.Now()}
	r.lastErr = nil
	r.logger.Info(module, "Embedding model resolved", map[string]interface{}{
		"model":     model.Spec().Name,
		"device":    model.Spec().Device,
		"precision": model.Spec().Precision,
	})
	return r.handle, nil
}

// Invalidate drops h if it is still the live handle, so the next Resolve
// starts again from the preferred model.
func (r *Resolver) Invalidate(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h == nil || r.handle != h {
		return
	}
	r.handle = nil
	r.logger.Warn(module, "Embedding handle invalidated", map[string]interface{}{
		"model": h.Spec().Name,
	})
}

func (r *Resolver) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	var s Status
	if r.handle != nil {
		spec := r.handle.Spec()
		at := r.handle.resolvedAt
		s.Ready = true
		s.Model = &spec
		s.ResolvedAt = &at
	}
	if r.lastErr != nil {
		s.LastError = r.lastErr.Error()
	}
	return s
}

func (r *Resolver) runLadder(ctx context.Context) (Model, error) {
	var errs []error
	accelerator := r.loader.AcceleratorAvailable()

	first := r.spec(r.ladder.Preferred, DeviceCPU, PrecisionFull)
	if accelerator {
		first.Device = DeviceAccelerator
	}
	model, err := r.try(ctx, 1, first)
	if err == nil {
		return model, nil
	}
	if ctx.Err() != nil {
		return nil, r.abandoned(ctx, 1)
	}
	errs = append(errs, err)

	if accelerator && errors.Is(err, ErrResourceExhausted) {
		r.release(ctx)
		model, err = r.try(ctx, 2, r.spec(r.ladder.Preferred, DeviceAccelerator, PrecisionHalf))
		if err == nil {
			return model, nil
		}
		if ctx.Err() != nil {
			return nil, r.abandoned(ctx, 2)
		}
		errs = append(errs, err)

		r.release(ctx)
		model, err = r.try(ctx, 3, r.spec(r.ladder.Medium, DeviceAccelerator, PrecisionHalf))
		if err == nil {
			return model, nil
		}
		if ctx.Err() != nil {
			return nil, r.abandoned(ctx, 3)
		}
		errs = append(errs, err)
	}

	// The small model is not an e5 model and takes no query prefix.
	last := r.spec(r.ladder.Small, DeviceCPU, PrecisionFull)
	last.QueryPrefix = ""
	model, err = r.try(ctx, 4, last)
	if err == nil {
		return model, nil
	}
	if ctx.Err() != nil {
		return nil, r.abandoned(ctx, 4)
	}
	errs = append(errs, err)

	exhausted := fmt.Errorf("%w: %w", ErrLadderExhausted, errors.Join(errs...))
	r.logger.Error(module, "Embedding ladder exhausted", map[string]interface{}{
		"error": exhausted.Error(),
	})
	return nil, exhausted
}

// abandoned reports a ladder run cut short by the caller's context. The next
// Resolve starts again at rung 1.
func (r *Resolver) abandoned(ctx context.Context, rung int) error {
	r.logger.Warn(module, "Embedding resolution abandoned", map[string]interface{}{
		"rung":  rung,
		"error": ctx.Err().Error(),
	})
	return fmt.Errorf("embedding: resolution abandoned at rung %d: %w", rung, ctx.Err())
}

func (r *Resolver) try(ctx context.Context, rung int, spec ModelSpec) (Model, error) {
	model, err := r.loader.Load(ctx, spec)
	if err != nil {
		r.logger.Warn(module, "Embedding model load failed", map[string]interface{}{
			"rung":  rung,
			"model": spec.String(),
			"error": err.Error(),
		})
		return nil, fmt.Errorf("rung %d %s: %w", rung, spec, err)
	}
	return model, nil
}

func (r *Resolver) release(ctx context.Context) {
	if err := r.loader.ReleaseAccelerator(ctx); err != nil {
		r.logger.Warn(module, "Accelerator release failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (r *Resolver) spec(name string, device Device, precision Precision) ModelSpec {
	return ModelSpec{Name: name, Device: device, Precision: precision, QueryPrefix: r.ladder.QueryPrefix}
}
