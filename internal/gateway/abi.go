package gateway

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// The deployed shop contract exists in two historical interface shapes with
// no version discriminator. The named shape is the later schema and carries
// the sold flag and media locator; the legacy shape addresses the record
// tuple purely by position and omits both. The gateway probes the named
// shape first and latches whichever answers.

// NamedShopABI is exported for tests and tooling that need to speak the
// contract surface directly.
const NamedShopABI = `[
  {
    "inputs": [],
    "name": "nextItemId",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "name": "items",
    "outputs": [
      {"internalType": "uint256", "name": "id", "type": "uint256"},
      {"internalType": "string", "name": "name", "type": "string"},
      {"internalType": "string", "name": "description", "type": "string"},
      {"internalType": "uint256", "name": "price", "type": "uint256"},
      {"internalType": "address", "name": "seller", "type": "address"},
      {"internalType": "bool", "name": "isSold", "type": "bool"},
      {"internalType": "string", "name": "mediaRef", "type": "string"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "string", "name": "_name", "type": "string"},
      {"internalType": "string", "name": "_description", "type": "string"},
      {"internalType": "uint256", "name": "_price", "type": "uint256"}
    ],
    "name": "listItem",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "_itemId", "type": "uint256"}],
    "name": "buyItem",
    "outputs": [],
    "stateMutability": "payable",
    "type": "function"
  }
]`

// LegacyShopABI is the positional-tuple revision of the shop interface.
const LegacyShopABI = `[
  {
    "inputs": [],
    "name": "offerIndex",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "name": "offeredItems",
    "outputs": [
      {"internalType": "address", "name": "", "type": "address"},
      {"internalType": "string", "name": "", "type": "string"},
      {"internalType": "string", "name": "", "type": "string"},
      {"internalType": "uint256", "name": "", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "string", "name": "_title", "type": "string"},
      {"internalType": "string", "name": "_description", "type": "string"},
      {"internalType": "uint256", "name": "_price", "type": "uint256"}
    ],
    "name": "newSale",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "_itemId", "type": "uint256"}],
    "name": "doBuy",
    "outputs": [],
    "stateMutability": "payable",
    "type": "function"
  }
]`

// shape selects one decode variant. Future contract revisions add a new
// shape and an entry in probeOrder; nothing else changes.
type shape int

const (
	shapeUnknown shape = iota
	shapeNamed
	shapeLegacy
)

func (s shape) String() string {
	switch s {
	case shapeNamed:
		return "named"
	case shapeLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// shapeSpec binds one interface shape to its ABI and method names.
type shapeSpec struct {
	shape          shape
	abi            abi.ABI
	countMethod    string
	recordMethod   string
	listMethod     string
	purchaseMethod string
}

var (
	namedSpec  shapeSpec
	legacySpec shapeSpec

	// probeOrder: named first; it is the richer, later schema.
	probeOrder []*shapeSpec
)

func init() {
	namedSpec = shapeSpec{
		shape:          shapeNamed,
		abi:            mustParseABI(NamedShopABI),
		countMethod:    "nextItemId",
		recordMethod:   "items",
		listMethod:     "listItem",
		purchaseMethod: "buyItem",
	}
	legacySpec = shapeSpec{
		shape:          shapeLegacy,
		abi:            mustParseABI(LegacyShopABI),
		countMethod:    "offerIndex",
		recordMethod:   "offeredItems",
		listMethod:     "newSale",
		purchaseMethod: "doBuy",
	}
	probeOrder = []*shapeSpec{&namedSpec, &legacySpec}
}

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("gateway: bad embedded ABI: %v", err))
	}
	return parsed
}

func specFor(s shape) (*shapeSpec, bool) {
	switch s {
	case shapeNamed:
		return &namedSpec, true
	case shapeLegacy:
		return &legacySpec, true
	default:
		return nil, false
	}
}
