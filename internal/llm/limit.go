package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limited spaces out calls to an underlying provider.
type Limited struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewLimited allows one call per interval, with no burst.
func NewLimited(p Provider, every time.Duration) *Limited {
	return &Limited{inner: p, limiter: rate.NewLimiter(rate.Every(every), 1)}
}

func (l *Limited) Name() string       { return l.inner.Name() }
func (l *Limited) IsConfigured() bool { return l.inner.IsConfigured() }

// Generate waits for the limiter, then delegates.
func (l *Limited) Generate(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return l.inner.Generate(ctx, system, prompt, maxTokens)
}
