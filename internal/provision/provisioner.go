// Package provision wraps the remote panel clients with the retry and
// failure-capture discipline the reconciler relies on: a remote call never
// raises out of this package, it always comes back as an Outcome.
package provision

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xshayank/vpnmarket-reseller/internal/models"
	"github.com/xshayank/vpnmarket-reseller/internal/panel"
	"github.com/xshayank/vpnmarket-reseller/internal/pkg/redact"
)

// Outcome describes one provisioning invocation. Attempts is zero when the
// call short-circuited on a configuration problem (missing panel,
// credentials, or remote identity) before anything went on the wire.
type Outcome struct {
	Success   bool   `json:"success"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
}

// PanelSource resolves panel credential records.
type PanelSource interface {
	FindByID(id uint) (*models.Panel, error)
}

// ClientFactory builds a client for a panel record. Defaults to
// panel.PanelFactory; swapped out in tests.
type ClientFactory func(p *models.Panel) (panel.PanelClient, error)

// Backoff delays before each attempt: immediate, then 1s, then 3s.
var retryBackoff = []time.Duration{0, time.Second, 3 * time.Second}

// Provisioner executes enable/disable/reset-usage against remote panels with
// bounded retry. Clients are cached per panel id for token/session reuse.
type Provisioner struct {
	panels  PanelSource
	factory ClientFactory
	logger  *zap.Logger
	sleep   func(time.Duration)

	mu      sync.Mutex
	clients map[uint]panel.PanelClient
}

func New(panels PanelSource, logger *zap.Logger) *Provisioner {
	return &Provisioner{
		panels:  panels,
		factory: panel.PanelFactory,
		logger:  logger,
		sleep:   time.Sleep,
		clients: make(map[uint]panel.PanelClient),
	}
}

// WithFactory overrides client construction (tests, custom transports).
func (p *Provisioner) WithFactory(f ClientFactory) *Provisioner {
	p.factory = f
	return p
}

// WithSleep overrides the backoff sleep (tests).
func (p *Provisioner) WithSleep(sleep func(time.Duration)) *Provisioner {
	p.sleep = sleep
	return p
}

// Enable enables the config's remote account.
func (p *Provisioner) Enable(ctx context.Context, cfg *models.ResellerConfig) Outcome {
	return p.apply(ctx, cfg, "enable", func(c panel.PanelClient) error {
		return c.EnableUser(ctx, cfg.PanelUserID)
	})
}

// Disable disables the config's remote account.
func (p *Provisioner) Disable(ctx context.Context, cfg *models.ResellerConfig) Outcome {
	return p.apply(ctx, cfg, "disable", func(c panel.PanelClient) error {
		return c.DisableUser(ctx, cfg.PanelUserID)
	})
}

// ResetUsage zeroes the config's remote usage counter.
func (p *Provisioner) ResetUsage(ctx context.Context, cfg *models.ResellerConfig) Outcome {
	return p.apply(ctx, cfg, "reset_usage", func(c panel.PanelClient) error {
		return c.ResetTraffic(ctx, cfg.PanelUserID)
	})
}

// FetchUsage reads the remote live usage counter. Used by the sync job.
func (p *Provisioner) FetchUsage(ctx context.Context, cfg *models.ResellerConfig) (int64, Outcome) {
	var used int64
	outcome := p.apply(ctx, cfg, "fetch_usage", func(c panel.PanelClient) error {
		user, err := c.GetUser(ctx, cfg.PanelUserID)
		if err != nil {
			return err
		}
		used = user.UsedTraffic
		return nil
	})
	return used, outcome
}

func (p *Provisioner) apply(ctx context.Context, cfg *models.ResellerConfig, op string, fn func(panel.PanelClient) error) Outcome {
	if cfg.PanelUserID == "" {
		return Outcome{Attempts: 0, LastError: "config has no remote identity"}
	}
	if cfg.PanelID == 0 {
		return Outcome{Attempts: 0, LastError: "config has no panel"}
	}

	client, err := p.clientFor(cfg.PanelID)
	if err != nil {
		// Missing panel record or credentials: configuration error, no retry.
		return Outcome{Attempts: 0, LastError: redact.Error(err)}
	}

	var lastErr string
	for attempt := 1; attempt <= len(retryBackoff); attempt++ {
		if d := retryBackoff[attempt-1]; d > 0 {
			p.sleep(d)
		}
		if ctx.Err() != nil {
			return Outcome{Attempts: attempt - 1, LastError: redact.Error(ctx.Err())}
		}

		err := callSafely(fn, client)
		if err == nil {
			return Outcome{Success: true, Attempts: attempt}
		}

		lastErr = redact.Error(err)
		p.logger.Warn("remote panel call failed",
			zap.String("op", op),
			zap.Uint("panel_id", cfg.PanelID),
			zap.Uint("config_id", cfg.ID),
			zap.Int("attempt", attempt),
			zap.String("error", lastErr),
		)
	}

	return Outcome{Attempts: len(retryBackoff), LastError: lastErr}
}

func (p *Provisioner) clientFor(panelID uint) (panel.PanelClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[panelID]; ok {
		return client, nil
	}

	panelModel, err := p.panels.FindByID(panelID)
	if err != nil {
		return nil, fmt.Errorf("panel %d not found: %w", panelID, err)
	}

	client, err := p.factory(panelModel)
	if err != nil {
		return nil, err
	}

	p.clients[panelID] = client
	return client, nil
}

// callSafely converts a panic inside a panel client into an error so one bad
// response body cannot take down a whole batch.
func callSafely(fn func(panel.PanelClient) error, client panel.PanelClient) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panel client panic: %v", r)
		}
	}()
	return fn(client)
}
