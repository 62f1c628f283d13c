package appconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const contractAddr = "0x0165878A594ca255338adfa4d48449f69242Eb8F"

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shop.yaml")
	content := `
contract:
  address: "` + contractAddr + `"
network:
  chainId: 11155111
  name: "Sepolia"
transactions:
  confirmationBudget: 90s
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := LoadFromPath(path)
	if cfg.Contract.Address != contractAddr {
		t.Fatalf("address = %q", cfg.Contract.Address)
	}
	if cfg.Network.ChainID != 11155111 || cfg.Network.Name != "Sepolia" {
		t.Fatalf("network = %+v", cfg.Network)
	}
	// Untouched fields keep their defaults.
	if cfg.Network.CurrencySymbol != "ETH" {
		t.Fatalf("currency symbol = %q", cfg.Network.CurrencySymbol)
	}
	if cfg.Transactions.ConfirmationBudget != 90*time.Second {
		t.Fatalf("confirmation budget = %v", cfg.Transactions.ConfirmationBudget)
	}
	if cfg.Transactions.SubmissionBudget != 30*time.Second {
		t.Fatalf("submission budget = %v", cfg.Transactions.SubmissionBudget)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if cfg.Network.ChainID != 31337 {
		t.Fatalf("chain id = %d, want default", cfg.Network.ChainID)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FAILLAPOP_SHOP_ADDRESS", contractAddr)
	t.Setenv("FAILLAPOP_CHAIN_ID", "1337")
	t.Setenv("FAILLAPOP_MEDIA_ENDPOINT", "http://127.0.0.1:5001")

	cfg := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if cfg.Contract.Address != contractAddr {
		t.Fatalf("address = %q", cfg.Contract.Address)
	}
	if cfg.Network.ChainID != 1337 {
		t.Fatalf("chain id = %d", cfg.Network.ChainID)
	}
	if cfg.Media.Endpoint != "http://127.0.0.1:5001" {
		t.Fatalf("media endpoint = %q", cfg.Media.Endpoint)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); !errors.Is(err, ErrMissingContract) {
		t.Fatalf("got %v, want ErrMissingContract", err)
	}
	cfg.Contract.Address = "nope"
	if cfg.Validate() == nil {
		t.Fatal("malformed address should not validate")
	}
	cfg.Contract.Address = contractAddr
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestDescriptorAndBudgets(t *testing.T) {
	cfg := Default()
	desc := cfg.Descriptor()
	if desc.ChainID != 31337 || desc.CurrencyDecimals != 18 || len(desc.RPCURLs) == 0 {
		t.Fatalf("descriptor = %+v", desc)
	}
	b := cfg.Budgets()
	if b.Submission != 30*time.Second || b.Confirmation != 60*time.Second {
		t.Fatalf("budgets = %+v", b)
	}
}
