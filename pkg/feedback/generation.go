package feedback

import "context"

type generationKey struct{}

// WithGeneration returns a copy of ctx carrying the registry generation that
// produced the actions dispatched with it.
func WithGeneration(ctx context.Context, gen uint64) context.Context {
	return context.WithValue(ctx, generationKey{}, gen)
}

// GenerationFrom reports the registry generation carried by ctx, if any.
func GenerationFrom(ctx context.Context) (uint64, bool) {
	gen, ok := ctx.Value(generationKey{}).(uint64)
	return gen, ok
}
