package identity

import (
	"context"
	"errors"
	"testing"

	"faillapop/go-client/internal/provider"
	"faillapop/go-client/internal/testutil/walletfake"
	"faillapop/go-client/pkg/models"
)

const (
	alice = "0xAbc0000000000000000000000000000000000001"
	bob   = "0xDef0000000000000000000000000000000000002"
)

func connectedFake(t *testing.T) *walletfake.Fake {
	t.Helper()
	fake := walletfake.New()
	fake.Returns(provider.MethodRequestAccounts, []string{alice})
	fake.Returns(provider.MethodAccounts, []string{alice})
	fake.Returns(provider.MethodChainID, "0x7a69")
	return fake
}

func TestConnectNormalizesAccount(t *testing.T) {
	fake := connectedFake(t)
	m := NewMonitor(fake, nil)
	defer m.Close()

	id, err := m.Connect(context.Background())
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if id.Account != models.NormalizeAddress(alice) {
		t.Fatalf("account not normalized: %q", id.Account)
	}
	if id.ChainID != 31337 {
		t.Fatalf("chain id = %d, want 31337", id.ChainID)
	}
	if m.Current() != id {
		t.Fatal("cached identity should match connect result")
	}
}

func TestConnectWithoutProvider(t *testing.T) {
	m := NewMonitor(nil, nil)
	if _, err := m.Connect(context.Background()); !errors.Is(err, ErrProviderAbsent) {
		t.Fatalf("got %v, want ErrProviderAbsent", err)
	}
}

func TestConnectDeclined(t *testing.T) {
	fake := walletfake.New()
	fake.Fails(provider.MethodRequestAccounts, &provider.Error{Code: provider.CodeUserRejected, Message: "user rejected"})
	m := NewMonitor(fake, nil)
	defer m.Close()

	if _, err := m.Connect(context.Background()); !errors.Is(err, ErrUserDeclined) {
		t.Fatalf("got %v, want ErrUserDeclined", err)
	}
	if m.Current().Connected() {
		t.Fatal("declined connect must not cache an identity")
	}
}

func TestCurrentBeforeConnect(t *testing.T) {
	m := NewMonitor(connectedFake(t), nil)
	defer m.Close()
	if m.Current() != (models.Identity{}) {
		t.Fatal("identity should be zero before connect")
	}
}

func TestResumeWithoutGrantedAccounts(t *testing.T) {
	fake := walletfake.New()
	fake.Returns(provider.MethodAccounts, []string{})
	m := NewMonitor(fake, nil)
	defer m.Close()

	id, err := m.Resume(context.Background())
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if id.Connected() {
		t.Fatal("resume without granted accounts should stay disconnected")
	}
}

func TestEnsureNetworkSwitch(t *testing.T) {
	fake := connectedFake(t)
	fake.Returns(provider.MethodSwitchChain, nil)
	m := NewMonitor(fake, nil)
	defer m.Close()
	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	fake.Returns(provider.MethodChainID, "0x1")
	if err := m.EnsureNetwork(context.Background(), ChainDescriptor{ChainID: 1, Name: "Mainnet"}); err != nil {
		t.Fatalf("ensure network failed: %v", err)
	}
	if got := m.Current().ChainID; got != 1 {
		t.Fatalf("chain id = %d after switch, want 1", got)
	}
	if fake.Calls(provider.MethodAddChain) != 0 {
		t.Fatal("known chain must not be re-registered")
	}
}

func TestEnsureNetworkAlreadyActive(t *testing.T) {
	fake := connectedFake(t)
	m := NewMonitor(fake, nil)
	defer m.Close()
	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if err := m.EnsureNetwork(context.Background(), ChainDescriptor{ChainID: 31337}); err != nil {
		t.Fatalf("ensure network failed: %v", err)
	}
	if fake.Calls(provider.MethodSwitchChain) != 0 {
		t.Fatal("active network must not trigger a switch")
	}
}

func TestEnsureNetworkRegistersUnknownChain(t *testing.T) {
	fake := connectedFake(t)
	fake.Fails(provider.MethodSwitchChain, &provider.Error{Code: provider.CodeChainUnknown, Message: "unknown chain"})
	fake.Returns(provider.MethodAddChain, nil)
	m := NewMonitor(fake, nil)
	defer m.Close()
	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	fake.Returns(provider.MethodChainID, "0x539")
	desc := ChainDescriptor{
		ChainID:          1337,
		Name:             "Local",
		CurrencyName:     "Ether",
		CurrencySymbol:   "ETH",
		CurrencyDecimals: 18,
		RPCURLs:          []string{"http://127.0.0.1:8545"},
	}
	if err := m.EnsureNetwork(context.Background(), desc); err != nil {
		t.Fatalf("ensure network failed: %v", err)
	}
	if fake.Calls(provider.MethodAddChain) != 1 {
		t.Fatal("unknown chain should be registered")
	}
	if got := m.Current().ChainID; got != 1337 {
		t.Fatalf("chain id = %d after registration, want 1337", got)
	}
}

func TestEnsureNetworkUnavailable(t *testing.T) {
	fake := connectedFake(t)
	fake.Fails(provider.MethodSwitchChain, &provider.Error{Code: provider.CodeChainUnknown, Message: "unknown chain"})
	fake.Fails(provider.MethodAddChain, &provider.Error{Code: provider.CodeUserRejected, Message: "user rejected"})
	m := NewMonitor(fake, nil)
	defer m.Close()
	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	err := m.EnsureNetwork(context.Background(), ChainDescriptor{ChainID: 1337, Name: "Local"})
	if !errors.Is(err, ErrNetworkUnavailable) {
		t.Fatalf("got %v, want ErrNetworkUnavailable", err)
	}
}

func TestAccountsChangedClearsOnEmptySet(t *testing.T) {
	fake := connectedFake(t)
	m := NewMonitor(fake, nil)
	defer m.Close()
	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	gen := m.Generation()

	fake.Emit(provider.EventAccountsChanged, []string{})
	if m.Current().Account != "" {
		t.Fatal("empty account set should clear the account")
	}
	if m.Generation() == gen {
		t.Fatal("account change should bump the generation")
	}

	fake.Emit(provider.EventAccountsChanged, []string{bob})
	if got := m.Current().Account; got != models.NormalizeAddress(bob) {
		t.Fatalf("account = %q after change, want %q", got, models.NormalizeAddress(bob))
	}
}

func TestChainChangedNotifiesWatchers(t *testing.T) {
	fake := connectedFake(t)
	m := NewMonitor(fake, nil)
	defer m.Close()
	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	var seen []models.Identity
	remove := m.Watch(func(id models.Identity) { seen = append(seen, id) })
	defer remove()

	fake.Emit(provider.EventChainChanged, "0x1")
	if len(seen) != 1 || seen[0].ChainID != 1 {
		t.Fatalf("watcher saw %v, want one change to chain 1", seen)
	}

	remove()
	fake.Emit(provider.EventChainChanged, "0x2")
	if len(seen) != 1 {
		t.Fatal("removed watcher must not be notified")
	}
}

func TestCloseUnsubscribes(t *testing.T) {
	fake := connectedFake(t)
	m := NewMonitor(fake, nil)
	if fake.Subscribers(provider.EventAccountsChanged) != 1 || fake.Subscribers(provider.EventChainChanged) != 1 {
		t.Fatal("monitor should subscribe to both provider events")
	}
	m.Close()
	m.Close() // idempotent
	if fake.Subscribers(provider.EventAccountsChanged) != 0 || fake.Subscribers(provider.EventChainChanged) != 0 {
		t.Fatal("close should remove both subscriptions")
	}
}
