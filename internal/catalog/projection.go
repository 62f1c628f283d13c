// Package catalog projects the remote record set into the application's
// item list. It is a pure re-fetch-and-project cache: nothing is persisted,
// and a projection built under one identity is never merged into another.
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"faillapop/go-client/internal/gateway"
	"faillapop/go-client/internal/platform/metrics"
	"faillapop/go-client/pkg/models"
)

// ErrStaleIdentity reports that the account or network changed while a
// refresh was in flight; the partial result was discarded.
var ErrStaleIdentity = errors.New("identity changed during refresh")

// Ledger is the read surface the projection pulls from.
type Ledger interface {
	RecordCount(ctx context.Context) (uint64, error)
	Record(ctx context.Context, id uint64) (models.ListedItem, error)
}

// IdentitySource exposes the current identity and its change counter.
type IdentitySource interface {
	Current() models.Identity
	Generation() uint64
}

type Projection struct {
	ledger   Ledger
	identity IdentitySource
	limiter  *rate.Limiter
	logger   *slog.Logger
	metrics  *metrics.Set

	mu    sync.RWMutex
	items []models.ListedItem
}

// New builds a projection. readsPerSecond paces the per-record reads during
// a refresh; zero or negative disables pacing.
func New(ledger Ledger, identity IdentitySource, readsPerSecond float64, logger *slog.Logger, m *metrics.Set) *Projection {
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if readsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(readsPerSecond), 1)
	}
	return &Projection{
		ledger:   ledger,
		identity: identity,
		limiter:  limiter,
		logger:   logger,
		metrics:  m,
	}
}

// Refresh re-reads the whole remote record set in id order. One
// undecodable record is skipped, not fatal; a transport failure aborts. A
// refresh that raced an identity change is discarded and reported as
// ErrStaleIdentity, leaving the previous snapshot in place.
func (p *Projection) Refresh(ctx context.Context) ([]models.CatalogEntry, error) {
	startGen := p.identity.Generation()

	count, err := p.ledger.RecordCount(ctx)
	if err != nil {
		p.metrics.CatalogRefresh("error")
		return nil, err
	}

	items := make([]models.ListedItem, 0, count)
	for id := uint64(0); id < count; id++ {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				p.metrics.CatalogRefresh("error")
				return nil, err
			}
		}
		item, err := p.ledger.Record(ctx, id)
		if err != nil {
			var de *gateway.DecodeError
			if errors.As(err, &de) {
				// Silent to the end user, observable in diagnostics.
				p.logger.Warn("catalog record skipped", "id", id, "error", de.Err)
				p.metrics.DecodeSkip()
				continue
			}
			p.metrics.CatalogRefresh("error")
			return nil, err
		}
		items = append(items, item)
	}

	if p.identity.Generation() != startGen {
		p.metrics.CatalogRefresh("stale")
		return nil, ErrStaleIdentity
	}

	p.mu.Lock()
	p.items = items
	p.mu.Unlock()
	p.metrics.CatalogRefresh("ok")
	return p.derive(items), nil
}

// Items returns the latest snapshot with the UI derivations applied
// against the current account.
func (p *Projection) Items() []models.CatalogEntry {
	p.mu.RLock()
	items := p.items
	p.mu.RUnlock()
	return p.derive(items)
}

// ForSeller filters the snapshot by seller, case-insensitively.
func (p *Projection) ForSeller(addr string) []models.CatalogEntry {
	want := models.NormalizeAddress(addr)
	p.mu.RLock()
	items := p.items
	p.mu.RUnlock()

	matched := make([]models.ListedItem, 0, len(items))
	for _, it := range items {
		if models.NormalizeAddress(it.Seller) == want {
			matched = append(matched, it)
		}
	}
	return p.derive(matched)
}

func (p *Projection) derive(items []models.ListedItem) []models.CatalogEntry {
	account := p.identity.Current()
	out := make([]models.CatalogEntry, 0, len(items))
	for _, it := range items {
		own := account.SameAccount(it.Seller)
		out = append(out, models.CatalogEntry{
			ListedItem:  it,
			Own:         own,
			Purchasable: !it.Sold && !own,
		})
	}
	return out
}
