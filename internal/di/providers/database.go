package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/listenupapp/restalign/internal/config"
	"github.com/listenupapp/restalign/internal/logger"
	"github.com/listenupapp/restalign/internal/sse"
	"github.com/listenupapp/restalign/internal/store"
	"github.com/listenupapp/restalign/internal/store/sqlite"
)

// EventManagerHandle wraps the run event manager with its context for
// lifecycle management.
type EventManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *EventManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideEventManager provides the run event stream manager.
func ProvideEventManager(i do.Injector) (*EventManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	return &EventManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreHandle wraps the run archive with shutdown capability.
// Store is nil when no archive path is configured.
type StoreHandle struct {
	Store *sqlite.Store
}

// RunStore returns the archive as a store.RunStore, or nil when disabled.
func (h *StoreHandle) RunStore() store.RunStore {
	if h.Store == nil {
		return nil
	}
	return h.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	if h.Store == nil {
		return nil
	}
	return h.Store.Close()
}

// ProvideStore provides the SQLite run archive.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Store.Path == "" {
		log.Info("Run archive disabled, set --store to enable")
		return &StoreHandle{}, nil
	}

	db, err := sqlite.Open(cfg.Store.Path, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Run archive opened", "path", cfg.Store.Path)

	return &StoreHandle{Store: db}, nil
}
