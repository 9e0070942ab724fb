// Package discovery locates wallet providers registered in the host
// process. Wallet integrations register a root provider at startup, the
// same way database drivers register themselves; the service side polls
// that registration point because providers typically come up after the
// controller does.
package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/fd1az/wallet-hub/business/wallet/app"
	"github.com/fd1az/wallet-hub/internal/logger"
)

// Host is the registration point wallet integrations publish their root
// provider to.
type Host struct {
	mu   sync.RWMutex
	root app.Provider
}

// NewHost creates an empty host.
func NewHost() *Host {
	return &Host{}
}

// SetRoot publishes the root provider. A later call replaces it.
func (h *Host) SetRoot(p app.Provider) {
	h.mu.Lock()
	h.root = p
	h.mu.Unlock()
}

// Root returns the published root provider, nil when none.
func (h *Host) Root() app.Provider {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.root
}

var defaultHost = NewHost()

// SetRoot publishes a root provider to the process-wide host.
func SetRoot(p app.Provider) {
	defaultHost.SetRoot(p)
}

// DefaultHost returns the process-wide host.
func DefaultHost() *Host {
	return defaultHost
}

// Service implements provider discovery over a Host.
type Service struct {
	host *Host
	log  logger.LoggerInterface
}

// NewService creates a discovery service. A nil host means the
// process-wide one.
func NewService(host *Host, log logger.LoggerInterface) *Service {
	if host == nil {
		host = defaultHost
	}
	return &Service{host: host, log: log}
}

// WaitForProvider polls the host until a root provider shows up or the
// timeout elapses. Both timers are released on every exit path.
func (s *Service) WaitForProvider(ctx context.Context, timeout, poll time.Duration) (app.Provider, bool) {
	if p := s.host.Root(); p != nil {
		return p, true
	}
	if timeout <= 0 || poll <= 0 {
		return nil, false
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-deadline.C:
			return nil, false
		case <-ticker.C:
			if p := s.host.Root(); p != nil {
				return p, true
			}
		}
	}
}

// EnumerateWallets maps a root provider to the addressable wallets
// behind it: a multi-provider root is returned verbatim, a
// self-identifying root becomes a single entry, anything else is empty.
// Never panics.
func (s *Service) EnumerateWallets(root app.Provider) map[string]app.Provider {
	if root == nil {
		return map[string]app.Provider{}
	}

	if multi, ok := root.(app.MultiProvider); ok {
		if m := multi.ProviderMap(); len(m) > 0 {
			return m
		}
	}

	if ident, ok := root.(app.Identifier); ok {
		if name := ident.Identity(); name != "" {
			return map[string]app.Provider{name: root}
		}
	}

	return map[string]app.Provider{}
}
