package inference

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/iMan-sources/sentiment-analysis/internal/domain"
	"github.com/iMan-sources/sentiment-analysis/internal/metrics"
)

// Pool bounds concurrent inference with a fixed number of slots. Callers block
// until a slot frees up or their context is cancelled, so a burst of comments
// cannot stack unbounded scoring work.
type Pool struct {
	scorer domain.Scorer
	slots  chan struct{}
}

// NewPool wraps scorer with a concurrency limit of workers (minimum 1).
func NewPool(scorer domain.Scorer, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		scorer: scorer,
		slots:  make(chan struct{}, workers),
	}
}

// Score runs the scorer within the pool's concurrency limit. The only error
// condition is context cancellation while waiting for a slot.
func (p *Pool) Score(ctx context.Context, text string) (domain.Prediction, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return domain.Prediction{}, ctx.Err()
	}
	defer func() { <-p.slots }()

	timer := prometheus.NewTimer(metrics.InferenceDuration)
	defer timer.ObserveDuration()

	return p.scorer.Score(text), nil
}
