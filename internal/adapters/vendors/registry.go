// Package vendors provides the SMS vendor capability registry and the
// capabilities shipped with bgsms.
package vendors

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/target/bgsms/internal/core"
)

// Capability names stored on sms_vendors rows.
const (
	CapabilityHTTPGateway = "http_gateway"
	CapabilityLog         = "log"
)

// Registry maps capability names to implementations. Lookups are case-insensitive.
type Registry struct {
	mu      sync.RWMutex
	send    map[string]core.SendCapability
	balance map[string]core.BalanceCapability
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		send:    make(map[string]core.SendCapability),
		balance: make(map[string]core.BalanceCapability),
	}
}

// DefaultOptions configures the built-in capabilities.
type DefaultOptions struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewDefaultRegistry returns a registry with http_gateway and log registered
// for both sending and balance queries.
func NewDefaultRegistry(opts DefaultOptions) *Registry {
	r := NewRegistry()
	gw := NewHTTPGateway(HTTPGatewayOptions{Client: opts.HTTPClient, Logger: opts.Logger})
	r.RegisterSend(CapabilityHTTPGateway, gw)
	r.RegisterBalance(CapabilityHTTPGateway, gw)

	dry := NewLogCapability(opts.Logger)
	r.RegisterSend(CapabilityLog, dry)
	r.RegisterBalance(CapabilityLog, dry)
	return r
}

// RegisterSend installs a send capability under name.
func (r *Registry) RegisterSend(name string, c core.SendCapability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.send[normalize(name)] = c
}

// RegisterBalance installs a balance capability under name.
func (r *Registry) RegisterBalance(name string, c core.BalanceCapability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balance[normalize(name)] = c
}

// SendCapability resolves a send capability. Empty names never resolve.
func (r *Registry) SendCapability(name string) (core.SendCapability, bool) {
	key := normalize(name)
	if key == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.send[key]
	return c, ok
}

// BalanceCapability resolves a balance capability. Empty names never resolve.
func (r *Registry) BalanceCapability(name string) (core.BalanceCapability, bool) {
	key := normalize(name)
	if key == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.balance[key]
	return c, ok
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

var _ core.VendorRegistry = (*Registry)(nil)
