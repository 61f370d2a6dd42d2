package providers

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type throttled struct {
	next    Provider
	limiter *rate.Limiter
}

// Throttle waits on limiter before each call to p. A nil limiter returns p unchanged.
func Throttle(p Provider, limiter *rate.Limiter) Provider {
	if limiter == nil {
		return p
	}
	return &throttled{next: p, limiter: limiter}
}

func (t *throttled) ExtractText(ctx context.Context, config Config) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return t.next.ExtractText(ctx, config)
}
