package vision

import (
	"context"
	"errors"

	"ingredient-detector/internal/infrastructure/config"
	"ingredient-detector/internal/pkg/common"
	"ingredient-detector/internal/pkg/metrics"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerRecognizer 在辨識器外加熔斷器。只有 UPSTREAM_ERROR 計入失敗，不重試。
type BreakerRecognizer struct {
	Recognizer
	cb *gobreaker.CircuitBreaker[[]Candidate]
}

// WithBreaker 包裝辨識器
func WithBreaker(next Recognizer, cfg config.BreakerConfig) *BreakerRecognizer {
	name := string(next.Provider())
	settings := gobreaker.Settings{
		Name:        "vision-" + name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, common.ErrUpstream) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			metrics.SetBreakerState(name, int(to))
			common.LogWarn("視覺模型熔斷器狀態變更",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	metrics.SetBreakerState(name, int(gobreaker.StateClosed))

	return &BreakerRecognizer{
		Recognizer: next,
		cb:         gobreaker.NewCircuitBreaker[[]Candidate](settings),
	}
}

// Recognize 經熔斷器呼叫下一層
func (b *BreakerRecognizer) Recognize(ctx context.Context, image []byte) ([]Candidate, error) {
	candidates, err := b.cb.Execute(func() ([]Candidate, error) {
		return b.Recognizer.Recognize(ctx, image)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, common.NewUpstreamError(
			string(b.Provider())+" temporarily unavailable (circuit open)", err)
	}
	return candidates, err
}

// State 目前熔斷器狀態
func (b *BreakerRecognizer) State() gobreaker.State {
	return b.cb.State()
}
