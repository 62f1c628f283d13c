// Package session composes the ledger client for one browser-tab-like
// scope. A session is explicitly constructed and owned by the caller; the
// identity-keyed component set inside it is rebuilt, never mutated, after
// every account or network change.
package session

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"

	"faillapop/go-client/internal/bootstrap/appconfig"
	"faillapop/go-client/internal/catalog"
	"faillapop/go-client/internal/gateway"
	"faillapop/go-client/internal/identity"
	"faillapop/go-client/internal/mediastore"
	"faillapop/go-client/internal/platform/metrics"
	"faillapop/go-client/internal/provider"
	"faillapop/go-client/internal/txexec"
	"faillapop/go-client/pkg/models"
)

var ErrNotConnected = errors.New("session is not connected")

// boundSet is everything keyed by one identity. It is replaced wholesale
// on change; callers holding the old set keep a consistent if stale view.
type boundSet struct {
	identity models.Identity
	gateway  *gateway.Gateway
	executor *txexec.Executor
	catalog  *catalog.Projection
}

type Session struct {
	provider provider.Provider
	cfg      appconfig.Config
	logger   *slog.Logger
	metrics  *metrics.Set
	monitor  *identity.Monitor
	media    *mediastore.Client
	unwatch  func()

	mu    sync.RWMutex
	bound *boundSet
}

// New validates the configuration and builds a disconnected session.
func New(p provider.Provider, cfg appconfig.Config, logger *slog.Logger, m *metrics.Set) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		provider: p,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		monitor:  identity.NewMonitor(p, logger),
		media:    mediastore.New(cfg.Media.Endpoint, logger),
	}
	s.unwatch = s.monitor.Watch(s.onIdentityChange)
	return s, nil
}

// Connect requests wallet access, moves the wallet to the configured
// network, and builds the identity-bound components.
func (s *Session) Connect(ctx context.Context) (models.Identity, error) {
	if _, err := s.monitor.Connect(ctx); err != nil {
		return models.Identity{}, err
	}
	if err := s.monitor.EnsureNetwork(ctx, s.cfg.Descriptor()); err != nil {
		return models.Identity{}, err
	}
	id := s.monitor.Current()
	s.rebuild(id)
	return id, nil
}

// Resume restores a previously granted connection without prompting.
func (s *Session) Resume(ctx context.Context) (models.Identity, error) {
	id, err := s.monitor.Resume(ctx)
	if err != nil {
		return models.Identity{}, err
	}
	if id.Connected() {
		s.rebuild(id)
	}
	return id, nil
}

func (s *Session) Identity() models.Identity {
	return s.monitor.Current()
}

// Catalog returns the projection bound to the current identity.
func (s *Session) Catalog() (*catalog.Projection, error) {
	b, err := s.current()
	if err != nil {
		return nil, err
	}
	return b.catalog, nil
}

// Pending snapshots the transaction table of the current component set.
func (s *Session) Pending() ([]models.PendingTransaction, error) {
	b, err := s.current()
	if err != nil {
		return nil, err
	}
	return b.executor.Pending(), nil
}

// List submits a create-listing intent and, once confirmed, refreshes the
// catalog so the new record is visible.
func (s *Session) List(ctx context.Context, name, description string, price *big.Int) (txexec.Outcome, error) {
	b, err := s.current()
	if err != nil {
		return txexec.Outcome{}, err
	}
	outcome := b.executor.Execute(ctx, models.IntentList, func(ctx context.Context) (string, error) {
		return b.gateway.SubmitList(ctx, name, description, price)
	})
	s.refreshAfterWrite(ctx, b, outcome)
	return outcome, nil
}

// Buy submits a purchase intent carrying the exact current price.
func (s *Session) Buy(ctx context.Context, id uint64) (txexec.Outcome, error) {
	b, err := s.current()
	if err != nil {
		return txexec.Outcome{}, err
	}
	outcome := b.executor.Execute(ctx, models.IntentPurchase, func(ctx context.Context) (string, error) {
		return b.gateway.SubmitPurchase(ctx, id)
	})
	s.refreshAfterWrite(ctx, b, outcome)
	return outcome, nil
}

// UploadMedia stores a listing's media blob and returns its locator.
func (s *Session) UploadMedia(ctx context.Context, name string, blob []byte) (string, error) {
	return s.media.Upload(ctx, name, blob)
}

// Close tears down the monitor subscriptions. The session is unusable
// afterwards.
func (s *Session) Close() {
	if s.unwatch != nil {
		s.unwatch()
	}
	s.monitor.Close()
	s.mu.Lock()
	s.bound = nil
	s.mu.Unlock()
}

func (s *Session) current() (*boundSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.bound == nil {
		return nil, ErrNotConnected
	}
	return s.bound, nil
}

func (s *Session) refreshAfterWrite(ctx context.Context, b *boundSet, outcome txexec.Outcome) {
	if outcome.Status != models.StatusConfirmed {
		return
	}
	if _, err := b.catalog.Refresh(ctx); err != nil {
		if errors.Is(err, catalog.ErrStaleIdentity) {
			return
		}
		s.logger.Warn("catalog refresh after write failed", "error", err)
	}
}

func (s *Session) onIdentityChange(id models.Identity) {
	if !id.Connected() {
		s.mu.Lock()
		s.bound = nil
		s.mu.Unlock()
		s.logger.Info("wallet disconnected, session components dropped")
		return
	}
	s.rebuild(id)
}

// rebuild replaces the whole identity-bound component set. Remote record
// addressing is network-scoped, so nothing cached under the old identity
// survives.
func (s *Session) rebuild(id models.Identity) {
	gw, err := gateway.New(s.provider, s.cfg.Contract.Address, id, s.logger)
	if err != nil {
		s.logger.Error("gateway rebuild failed", "error", err)
		s.mu.Lock()
		s.bound = nil
		s.mu.Unlock()
		return
	}
	b := &boundSet{
		identity: id,
		gateway:  gw,
		executor: txexec.New(s.provider, s.cfg.Budgets(), s.logger, s.metrics),
		catalog:  catalog.New(gw, s.monitor, s.cfg.Catalog.ReadsPerSecond, s.logger, s.metrics),
	}
	s.mu.Lock()
	s.bound = b
	s.mu.Unlock()
	s.logger.Info("session components rebuilt",
		"account", id.Account,
		"chainId", id.ChainID,
	)
}
