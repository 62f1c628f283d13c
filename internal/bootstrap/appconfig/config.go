// Package appconfig loads the startup artifact the provisioning pipeline
// writes after deploying the shop contract: the contract address, the
// expected network and its wallet descriptor, and the client's operating
// knobs. Values merge over defaults; the environment wins last.
package appconfig

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"faillapop/go-client/internal/identity"
	"faillapop/go-client/internal/txexec"
)

var ErrMissingContract = errors.New("shop contract address is not configured")

type Config struct {
	Contract     ContractConfig `yaml:"contract"`
	Network      NetworkConfig  `yaml:"network"`
	Transactions TxConfig       `yaml:"transactions"`
	Catalog      CatalogConfig  `yaml:"catalog"`
	Media        MediaConfig    `yaml:"media"`
}

type ContractConfig struct {
	Address string `yaml:"address"`
}

type NetworkConfig struct {
	ChainID          int64    `yaml:"chainId"`
	Name             string   `yaml:"name"`
	CurrencyName     string   `yaml:"currencyName"`
	CurrencySymbol   string   `yaml:"currencySymbol"`
	CurrencyDecimals int      `yaml:"currencyDecimals"`
	RPCURLs          []string `yaml:"rpcUrls"`
}

type TxConfig struct {
	SubmissionBudget    time.Duration `yaml:"submissionBudget"`
	ConfirmationBudget  time.Duration `yaml:"confirmationBudget"`
	ReceiptPollInterval time.Duration `yaml:"receiptPollInterval"`
}

type CatalogConfig struct {
	ReadsPerSecond float64 `yaml:"readsPerSecond"`
}

type MediaConfig struct {
	Endpoint string `yaml:"endpoint"`
}

func Default() Config {
	return Config{
		Network: NetworkConfig{
			ChainID:          31337,
			Name:             "Localhost 8545",
			CurrencyName:     "Ether",
			CurrencySymbol:   "ETH",
			CurrencyDecimals: 18,
			RPCURLs:          []string{"http://127.0.0.1:8545"},
		},
		Transactions: TxConfig{
			SubmissionBudget:    30 * time.Second,
			ConfirmationBudget:  60 * time.Second,
			ReceiptPollInterval: 2 * time.Second,
		},
		Catalog: CatalogConfig{ReadsPerSecond: 20},
	}
}

// LoadFromPath reads the first config file that parses, merged over
// defaults. An empty path falls back to the conventional locations.
func LoadFromPath(configPath string) Config {
	cfg := Default()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"configs/shop.yaml",
			"shop.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}
		Merge(&cfg, parsed)
		ApplyEnvOverrides(&cfg)
		return cfg
	}

	ApplyEnvOverrides(&cfg)
	return cfg
}

// Merge copies every set field of src over dst.
func Merge(dst *Config, src Config) {
	if src.Contract.Address != "" {
		dst.Contract.Address = src.Contract.Address
	}
	if src.Network.ChainID != 0 {
		dst.Network.ChainID = src.Network.ChainID
	}
	if src.Network.Name != "" {
		dst.Network.Name = src.Network.Name
	}
	if src.Network.CurrencyName != "" {
		dst.Network.CurrencyName = src.Network.CurrencyName
	}
	if src.Network.CurrencySymbol != "" {
		dst.Network.CurrencySymbol = src.Network.CurrencySymbol
	}
	if src.Network.CurrencyDecimals != 0 {
		dst.Network.CurrencyDecimals = src.Network.CurrencyDecimals
	}
	if len(src.Network.RPCURLs) > 0 {
		dst.Network.RPCURLs = src.Network.RPCURLs
	}
	if src.Transactions.SubmissionBudget > 0 {
		dst.Transactions.SubmissionBudget = src.Transactions.SubmissionBudget
	}
	if src.Transactions.ConfirmationBudget > 0 {
		dst.Transactions.ConfirmationBudget = src.Transactions.ConfirmationBudget
	}
	if src.Transactions.ReceiptPollInterval > 0 {
		dst.Transactions.ReceiptPollInterval = src.Transactions.ReceiptPollInterval
	}
	if src.Catalog.ReadsPerSecond > 0 {
		dst.Catalog.ReadsPerSecond = src.Catalog.ReadsPerSecond
	}
	if src.Media.Endpoint != "" {
		dst.Media.Endpoint = src.Media.Endpoint
	}
}

// ApplyEnvOverrides lets the environment override the provisioned values.
func ApplyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("FAILLAPOP_SHOP_ADDRESS")); v != "" {
		cfg.Contract.Address = v
	}
	if v := strings.TrimSpace(os.Getenv("FAILLAPOP_CHAIN_ID")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			cfg.Network.ChainID = id
		}
	}
	if v := strings.TrimSpace(os.Getenv("FAILLAPOP_MEDIA_ENDPOINT")); v != "" {
		cfg.Media.Endpoint = v
	}
}

// Validate checks the fields without which no session can be built.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Contract.Address) == "" {
		return ErrMissingContract
	}
	if !common.IsHexAddress(c.Contract.Address) {
		return errors.New("shop contract address is not a hex address")
	}
	if c.Network.ChainID <= 0 {
		return errors.New("chain id must be positive")
	}
	return nil
}

// Descriptor renders the network section as the wallet registration
// descriptor.
func (c Config) Descriptor() identity.ChainDescriptor {
	return identity.ChainDescriptor{
		ChainID:          c.Network.ChainID,
		Name:             c.Network.Name,
		CurrencyName:     c.Network.CurrencyName,
		CurrencySymbol:   c.Network.CurrencySymbol,
		CurrencyDecimals: c.Network.CurrencyDecimals,
		RPCURLs:          c.Network.RPCURLs,
	}
}

// Budgets renders the transaction section for the executor.
func (c Config) Budgets() txexec.Budgets {
	return txexec.Budgets{
		Submission:   c.Transactions.SubmissionBudget,
		Confirmation: c.Transactions.ConfirmationBudget,
		PollInterval: c.Transactions.ReceiptPollInterval,
	}
}
