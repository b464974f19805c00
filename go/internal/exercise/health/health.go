// Package health reports whether an ExCon process can still reach its sync backends.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mcdev12/excon/go/internal/exercise/checkpoint"
	"github.com/rs/zerolog/log"
)

// Probe returns nil when the checked dependency is usable
type Probe func(ctx context.Context) error

type Status struct {
	Healthy bool              `json:"healthy"`
	Checks  map[string]string `json:"checks"`
	Errors  []string          `json:"errors"`
}

type namedProbe struct {
	name  string
	probe Probe
}

// Checker runs its probes in registration order
type Checker struct {
	mu      sync.RWMutex
	probes  []namedProbe
	timeout time.Duration
}

// NewChecker creates a Checker whose HTTP handler bounds each check by timeout
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{timeout: timeout}
}

// Add registers a probe under name
func (c *Checker) Add(name string, probe Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes = append(c.probes, namedProbe{name: name, probe: probe})
}

func (c *Checker) Check(ctx context.Context) Status {
	c.mu.RLock()
	probes := append([]namedProbe(nil), c.probes...)
	c.mu.RUnlock()

	status := Status{
		Healthy: true,
		Checks:  make(map[string]string, len(probes)),
		Errors:  []string{},
	}
	for _, p := range probes {
		if err := p.probe(ctx); err != nil {
			status.Healthy = false
			status.Checks[p.name] = "failing"
			status.Errors = append(status.Errors, fmt.Sprintf("%s: %v", p.name, err))
			continue
		}
		status.Checks[p.name] = "ok"
	}
	return status
}

func (c *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()

	status := c.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		log.Warn().Strs("errors", status.Errors).Msg("health check failing")
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to write health response")
	}
}

// CheckpointProbe reads key from kv. A key that was never written still counts as reachable.
func CheckpointProbe(kv checkpoint.KV, key string) Probe {
	return func(ctx context.Context) error {
		if _, err := kv.Get(ctx, key); err != nil && !errors.Is(err, checkpoint.ErrNotFound) {
			return err
		}
		return nil
	}
}

// Connector is implemented by channels that hold a network connection
type Connector interface {
	Connected() bool
}

// ConnectionProbe fails while c is disconnected
func ConnectionProbe(c Connector) Probe {
	return func(context.Context) error {
		if !c.Connected() {
			return errors.New("disconnected")
		}
		return nil
	}
}
