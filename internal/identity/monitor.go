// Package identity tracks which account and network the injected wallet
// provider currently exposes. The monitor is the only owner of that state;
// everything keyed by it is rebuilt, not mutated, when it changes.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"faillapop/go-client/internal/provider"
	"faillapop/go-client/pkg/models"
)

var (
	ErrProviderAbsent     = errors.New("no wallet provider is injected")
	ErrUserDeclined       = errors.New("wallet request was declined by the user")
	ErrNetworkUnavailable = errors.New("requested network is not available in the wallet")
)

// ChainDescriptor describes a network the wallet may need to register
// before it can switch to it (EIP-3085).
type ChainDescriptor struct {
	ChainID          int64
	Name             string
	CurrencyName     string
	CurrencySymbol   string
	CurrencyDecimals int
	RPCURLs          []string
}

// Monitor caches the provider-exposed identity and relays its change
// events. Every account or network change bumps the generation counter;
// holders of identity-keyed state compare generations to detect staleness.
type Monitor struct {
	provider provider.Provider
	logger   *slog.Logger

	mu          sync.RWMutex
	identity    models.Identity
	generation  uint64
	watchers    map[int]func(models.Identity)
	nextWatcher int
	unsubs      []func()
	closed      bool
}

// NewMonitor builds a monitor over the injected provider and subscribes to
// its account and network change events for the lifetime of the session.
// A nil provider is tolerated; Connect then reports ErrProviderAbsent.
func NewMonitor(p provider.Provider, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{
		provider: p,
		logger:   logger,
		watchers: make(map[int]func(models.Identity)),
	}
	if p == nil {
		return m
	}
	if unsub, err := p.Subscribe(provider.EventAccountsChanged, m.handleAccountsChanged); err == nil {
		m.unsubs = append(m.unsubs, unsub)
	} else {
		logger.Warn("accountsChanged subscription failed", "error", err)
	}
	if unsub, err := p.Subscribe(provider.EventChainChanged, m.handleChainChanged); err == nil {
		m.unsubs = append(m.unsubs, unsub)
	} else {
		logger.Warn("chainChanged subscription failed", "error", err)
	}
	return m
}

// Connect requests account disclosure from the wallet and caches the
// resulting identity.
func (m *Monitor) Connect(ctx context.Context) (models.Identity, error) {
	if m.provider == nil {
		return models.Identity{}, ErrProviderAbsent
	}
	raw, err := m.provider.Request(ctx, provider.MethodRequestAccounts)
	if err != nil {
		if provider.IsUserRejection(err) {
			return models.Identity{}, ErrUserDeclined
		}
		return models.Identity{}, err
	}
	account, err := firstAccount(raw)
	if err != nil {
		return models.Identity{}, err
	}
	if account == "" {
		return models.Identity{}, ErrUserDeclined
	}
	chainID, err := m.queryChainID(ctx)
	if err != nil {
		return models.Identity{}, err
	}
	id := models.Identity{Account: account, ChainID: chainID}
	m.setIdentity(id)
	return id, nil
}

// Resume restores a previously granted connection without prompting. If the
// wallet exposes no account the monitor stays disconnected; that is not an
// error.
func (m *Monitor) Resume(ctx context.Context) (models.Identity, error) {
	if m.provider == nil {
		return models.Identity{}, ErrProviderAbsent
	}
	raw, err := m.provider.Request(ctx, provider.MethodAccounts)
	if err != nil {
		return models.Identity{}, err
	}
	account, err := firstAccount(raw)
	if err != nil {
		return models.Identity{}, err
	}
	if account == "" {
		return models.Identity{}, nil
	}
	chainID, err := m.queryChainID(ctx)
	if err != nil {
		return models.Identity{}, err
	}
	id := models.Identity{Account: account, ChainID: chainID}
	m.setIdentity(id)
	return id, nil
}

// Current returns the cached identity without a provider round trip.
func (m *Monitor) Current() models.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity
}

// Generation returns the change counter for the cached identity.
func (m *Monitor) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

// EnsureNetwork switches the wallet to the described network, registering
// it first if the wallet does not know it. Record addressing is
// network-scoped, so callers must not touch the ledger until this succeeds.
func (m *Monitor) EnsureNetwork(ctx context.Context, desc ChainDescriptor) error {
	if m.provider == nil {
		return ErrProviderAbsent
	}
	if m.Current().ChainID == desc.ChainID {
		return nil
	}
	chainHex := hexutil.EncodeUint64(uint64(desc.ChainID))
	_, err := m.provider.Request(ctx, provider.MethodSwitchChain, map[string]any{"chainId": chainHex})
	if err == nil {
		return m.refreshChainID(ctx)
	}
	if !provider.IsChainUnknown(err) && !provider.IsUnsupported(err) {
		m.logger.Warn("network switch rejected", "chainId", desc.ChainID, "error", err)
		return ErrNetworkUnavailable
	}
	_, err = m.provider.Request(ctx, provider.MethodAddChain, map[string]any{
		"chainId":   chainHex,
		"chainName": desc.Name,
		"nativeCurrency": map[string]any{
			"name":     desc.CurrencyName,
			"symbol":   desc.CurrencySymbol,
			"decimals": desc.CurrencyDecimals,
		},
		"rpcUrls": desc.RPCURLs,
	})
	if err != nil {
		m.logger.Warn("network registration rejected", "chainId", desc.ChainID, "error", err)
		return ErrNetworkUnavailable
	}
	return m.refreshChainID(ctx)
}

// Watch registers a change watcher and returns its remover. The watcher is
// invoked after every account or network change with the new identity.
func (m *Monitor) Watch(fn func(models.Identity)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextWatcher++
	id := m.nextWatcher
	m.watchers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.watchers, id)
	}
}

// Close tears down the provider event subscriptions.
func (m *Monitor) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	unsubs := m.unsubs
	m.unsubs = nil
	m.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
}

func (m *Monitor) queryChainID(ctx context.Context) (int64, error) {
	raw, err := m.provider.Request(ctx, provider.MethodChainID)
	if err != nil {
		return 0, err
	}
	return decodeChainID(raw)
}

func (m *Monitor) refreshChainID(ctx context.Context) error {
	chainID, err := m.queryChainID(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	id := m.identity
	m.mu.Unlock()
	id.ChainID = chainID
	m.setIdentity(id)
	return nil
}

func (m *Monitor) setIdentity(id models.Identity) {
	m.mu.Lock()
	if m.identity == id {
		m.mu.Unlock()
		return
	}
	m.identity = id
	m.generation++
	watchers := make([]func(models.Identity), 0, len(m.watchers))
	for _, w := range m.watchers {
		watchers = append(watchers, w)
	}
	m.mu.Unlock()
	// Watchers run outside the lock; they typically reconstruct
	// identity-keyed components.
	for _, w := range watchers {
		w(id)
	}
}

func (m *Monitor) handleAccountsChanged(payload json.RawMessage) {
	account, err := firstAccount(payload)
	if err != nil {
		m.logger.Warn("malformed accountsChanged payload", "error", err)
		return
	}
	m.mu.RLock()
	id := m.identity
	m.mu.RUnlock()
	id.Account = account
	m.setIdentity(id)
}

func (m *Monitor) handleChainChanged(payload json.RawMessage) {
	chainID, err := decodeChainID(payload)
	if err != nil {
		m.logger.Warn("malformed chainChanged payload", "error", err)
		return
	}
	m.mu.RLock()
	id := m.identity
	m.mu.RUnlock()
	id.ChainID = chainID
	m.setIdentity(id)
}

func firstAccount(raw json.RawMessage) (string, error) {
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return "", err
	}
	if len(accounts) == 0 {
		return "", nil
	}
	return models.NormalizeAddress(accounts[0]), nil
}

func decodeChainID(raw json.RawMessage) (int64, error) {
	var hexID string
	if err := json.Unmarshal(raw, &hexID); err != nil {
		return 0, err
	}
	v, err := hexutil.DecodeBig(hexID)
	if err != nil {
		return 0, err
	}
	return v.Int64(), nil
}
