package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/restalign/internal/config"
	"github.com/listenupapp/restalign/internal/logger"
	"github.com/listenupapp/restalign/internal/pipeline"
	"github.com/listenupapp/restalign/internal/ratelimit"
)

// ProvideRunner provides the analysis pipeline.
func ProvideRunner(i do.Injector) (*pipeline.Runner, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return pipeline.NewRunner(log), nil
}

// RateLimiterHandle wraps the per-client limiter. Limiter is nil when rate
// limiting is disabled.
type RateLimiterHandle struct {
	Limiter *ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *RateLimiterHandle) Shutdown() error {
	if h.Limiter != nil {
		h.Limiter.Stop()
	}
	return nil
}

// ProvideRateLimiter provides the per-client request limiter.
func ProvideRateLimiter(i do.Injector) (*RateLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Server.RateLimit == 0 {
		log.Info("Rate limiting disabled")
		return &RateLimiterHandle{}, nil
	}

	burst := cfg.Server.RateBurst
	if burst < 1 {
		burst = 1
	}
	return &RateLimiterHandle{Limiter: ratelimit.New(cfg.Server.RateLimit, burst)}, nil
}
