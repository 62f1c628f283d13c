package models

import (
	"math/big"
	"strings"
	"time"
)

// Identity is the account/network pair currently exposed by the wallet
// provider. The zero value means no account has been disclosed yet.
// Account is stored lower-cased; all equality checks go through it.
type Identity struct {
	Account string `json:"account"`
	ChainID int64  `json:"chain_id"`
}

func (id Identity) Connected() bool {
	return id.Account != ""
}

// SameAccount compares addresses case-insensitively.
func (id Identity) SameAccount(addr string) bool {
	return id.Account != "" && id.Account == NormalizeAddress(addr)
}

// NormalizeAddress lower-cases an address for comparison. Checksummed and
// plain hex renderings of the same account must compare equal.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// ListedItem is one remote shop record. Price is the exact on-chain amount
// in the ledger's minor unit; it never passes through floating point.
type ListedItem struct {
	ID          uint64   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       *big.Int `json:"price"`
	Seller      string   `json:"seller"`
	Sold        bool     `json:"sold"`
	MediaRef    string   `json:"media_ref,omitempty"`
}

type IntentKind string

const (
	IntentList     IntentKind = "list"
	IntentPurchase IntentKind = "purchase"
)

type TxStatus string

const (
	StatusSubmitted   TxStatus = "submitted"
	StatusConfirmed   TxStatus = "confirmed"
	StatusRejected    TxStatus = "rejected"
	StatusTimedOut    TxStatus = "timedOut"
	StatusReverted    TxStatus = "reverted"
	StatusUnreachable TxStatus = "unreachable"
)

// Terminal reports whether the status ends a transaction's lifecycle.
func (s TxStatus) Terminal() bool {
	return s != StatusSubmitted
}

// PendingTransaction records one state-changing intent from submission to
// its single terminal status. Entries are never reused or resubmitted.
type PendingTransaction struct {
	ID          string     `json:"id"`
	Kind        IntentKind `json:"kind"`
	SubmittedAt time.Time  `json:"submitted_at"`
	Status      TxStatus   `json:"status"`
	TxRef       string     `json:"tx_ref,omitempty"`
}

// CatalogEntry is a ListedItem with the UI-facing derivations applied.
// The flags are computed per read; they are never stored.
type CatalogEntry struct {
	ListedItem
	Own         bool `json:"own"`
	Purchasable bool `json:"purchasable"`
}
