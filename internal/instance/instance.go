// Package instance provides the opaque stable identity of this deployment,
// used to attribute license checks to an installation.
package instance

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Provider resolves the deployment identity. Precedence: explicitly
// configured id, then the persisted id file, then a freshly generated UUID
// which is persisted for subsequent runs. The resolved id is cached for the
// lifetime of the process.
type Provider struct {
	configured string
	path       string
	logger     *slog.Logger

	mu     sync.Mutex
	cached string
}

// NewProvider creates an identity provider. configured may be empty; path is
// where a generated identity is persisted.
func NewProvider(configured, path string, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		configured: configured,
		path:       path,
		logger:     logger.With(slog.String("component", "instance_identity")),
	}
}

// InstanceID returns the deployment identity, or an empty string when none
// can be established.
func (p *Provider) InstanceID(ctx context.Context) (string, error) {
	if p.configured != "" {
		return p.configured, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != "" {
		return p.cached, nil
	}

	if data, err := os.ReadFile(p.path); err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			p.cached = id
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read instance id file: %w", err)
	}

	id := uuid.NewString()
	if err := os.WriteFile(p.path, []byte(id+"\n"), 0o600); err != nil {
		// Identity that cannot be persisted would churn on every restart
		// and look like a fleet of deployments to the authority.
		return "", fmt.Errorf("persist instance id: %w", err)
	}

	p.logger.InfoContext(ctx, "generated new instance identity",
		slog.String("path", p.path))
	p.cached = id
	return id, nil
}
