package providers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/samber/do/v2"

	"github.com/listenupapp/restalign/internal/api"
	"github.com/listenupapp/restalign/internal/config"
	"github.com/listenupapp/restalign/internal/logger"
	"github.com/listenupapp/restalign/internal/pipeline"
)

const (
	// Version is reported in the OpenAPI document.
	Version = "1.0.0"

	// shutdownTimeout bounds draining in-flight requests and queued run
	// events on shutdown.
	shutdownTimeout = 30 * time.Second
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server and starts it in the background.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	runner := do.MustInvoke[*pipeline.Runner](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	limiterHandle := do.MustInvoke[*RateLimiterHandle](i)
	eventsHandle := do.MustInvoke[*EventManagerHandle](i)

	handler := api.NewServer(runner, storeHandle.RunStore(), log, api.Options{
		Version:     Version,
		CORSOrigins: cfg.Server.CORSOrigins,
		Limiter:     limiterHandle.Limiter,
		Events:      eventsHandle.Manager,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
