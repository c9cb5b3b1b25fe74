package portals

import (
	"fmt"
	"sort"

	"go-portal-sync/internal/config"

	"go.uber.org/zap"
)

// Registry holds the configured portal adapters. The portal set is closed:
// lookups for anything outside it fail with ErrUnknownPortal, and disabled
// portals are simply absent.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(cfg *config.Config, store CredentialStore, recorder CallRecorder, log *zap.Logger) *Registry {
	adapters := make(map[string]Adapter)

	if cfg.OLX.Enabled {
		adapters[PortalOLX] = NewOLXAdapter(cfg, store, recorder, log)
	}
	if cfg.MercadoLivre.Enabled {
		adapters[PortalMercadoLivre] = NewMercadoLivreAdapter(cfg, store, recorder, log)
	}
	if cfg.ICarros.Enabled {
		adapters[PortalICarros] = NewICarrosAdapter(cfg, store, recorder, log)
	}
	if cfg.WebMotors.Enabled {
		adapters[PortalWebMotors] = NewWebMotorsSOAPAdapter(cfg, store, recorder, log)
		adapters[PortalWebMotorsREST] = NewWebMotorsRESTAdapter(cfg, store, recorder, log)
	}

	log.Info("portal registry initialized", zap.Strings("portals", names(adapters)))
	return &Registry{adapters: adapters}
}

// NewStaticRegistry builds a registry from a fixed adapter set.
func NewStaticRegistry(adapters map[string]Adapter) *Registry {
	return &Registry{adapters: adapters}
}

func names(adapters map[string]Adapter) []string {
	out := make([]string, 0, len(adapters))
	for name := range adapters {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Get returns the adapter for a portal name.
func (r *Registry) Get(portal string) (Adapter, error) {
	adapter, ok := r.adapters[portal]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPortal, portal)
	}
	return adapter, nil
}

// Names lists the enabled portals in stable order.
func (r *Registry) Names() []string {
	return names(r.adapters)
}

// All returns the enabled adapters keyed by portal name.
func (r *Registry) All() map[string]Adapter {
	return r.adapters
}
