package leads

import (
	"sync"

	"loan-intake/internal/common/config"
)

// Factory hands out the leads client for a request hostname. Clients are
// built once per domain.
type Factory struct {
	deps Dependencies
	cfg  config.LeadsConfig

	mu        sync.Mutex
	simulator *Simulator
	clients   map[string]Client
}

func NewFactory(deps Dependencies, cfg config.LeadsConfig) *Factory {
	return &Factory{
		deps:    deps,
		cfg:     cfg,
		clients: make(map[string]Client),
	}
}

// ForHost returns the simulator when mock services are enabled, otherwise
// the network client for the hostname's domain.
func (f *Factory) ForHost(hostname string) (Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cfg.MockServices {
		if f.simulator == nil {
			f.simulator = NewSimulator(config.GetDuration(f.cfg.MockDelay))
		}
		return f.simulator, nil
	}

	domain := config.DomainType(hostname)
	if c, ok := f.clients[domain]; ok {
		return c, nil
	}

	c, err := NewHTTPClient(f.deps, HTTPConfig{
		BaseURL: f.cfg.ForHost(hostname).APIBaseURL,
		APIKey:  f.cfg.APIKey,
		Timeout: config.GetDuration(f.cfg.Timeout),
	})
	if err != nil {
		return nil, err
	}
	f.clients[domain] = c
	return c, nil
}
