package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/domain"
)

// Source provides the feedback to replay. *Registry implements it.
type Source interface {
	All() []domain.Action
}

// Pipeline re-applies registered feedback to a fresh model snapshot.
type Pipeline struct {
	source Source
	logger *slog.Logger
	hooks  domain.LifecycleHooks
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineLogger configures the pipeline logger.
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPipelineHooks registers lifecycle callbacks (OnReplay).
func WithPipelineHooks(hooks domain.LifecycleHooks) PipelineOption {
	return func(p *Pipeline) {
		p.hooks = hooks
	}
}

// NewPipeline creates a pipeline replaying the feedback of source.
func NewPipeline(source Source, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		source: source,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Replay returns root decorated with every registered feedback.
// root itself is not modified.
func (p *Pipeline) Replay(ctx context.Context, root *domain.Element) *domain.Element {
	var actions []domain.Action
	if p.source != nil {
		actions = p.source.All()
	}
	return p.Apply(ctx, root, actions)
}

// Apply decorates a copy of root with actions.
//
// Effects run by priority, highest first; equal priorities keep their order in actions.
// Unknown kinds are skipped. An effect that fails is discarded and the next one
// receives the output of the last successful effect.
func (p *Pipeline) Apply(ctx context.Context, root *domain.Element, actions []domain.Action) *domain.Element {
	if root == nil {
		return nil
	}
	start := time.Now()
	skipped := 0

	effects := make([]Effect, 0, len(actions))
	for _, a := range actions {
		if a == nil {
			continue
		}
		eff, ok := EffectFor(a)
		if !ok {
			skipped++
			p.logger.Warn("Skipping feedback without effect", "kind", a.Kind(), "err", domain.ErrUnknownEffect)
			continue
		}
		effects = append(effects, eff)
	}

	out, event := p.run(root, effects)
	event.Skipped = skipped
	if p.hooks.OnReplay != nil {
		event.Duration = time.Since(start)
		p.hooks.OnReplay(ctx, &event)
	}
	return out
}

func (p *Pipeline) run(root *domain.Element, effects []Effect) (*domain.Element, domain.ReplayEvent) {
	var event domain.ReplayEvent
	sort.SliceStable(effects, func(i, j int) bool {
		return effects[i].Priority > effects[j].Priority
	})

	// Effects share one copy while they succeed. A failure may leave that copy
	// half-modified, so it is rebuilt from root with the effects applied so far.
	current := root.Clone()
	applied := make([]Effect, 0, len(effects))
	for _, eff := range effects {
		if err := safeApply(eff, current); err != nil {
			event.Failed++
			p.logger.Error("Feedback effect failed", "kind", eff.Kind, "priority", eff.Priority, "err", err)
			current = rebuild(root, applied)
			continue
		}
		applied = append(applied, eff)
		event.Effects++
	}
	return current, event
}

// rebuild re-applies effects that already succeeded once on the same input.
// Effects are deterministic, so they succeed again.
func rebuild(root *domain.Element, effects []Effect) *domain.Element {
	out := root.Clone()
	for _, eff := range effects {
		_ = safeApply(eff, out)
	}
	return out
}

func safeApply(eff Effect, root *domain.Element) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("effect panic: %v", r)
		}
	}()
	return eff.Apply(root)
}
