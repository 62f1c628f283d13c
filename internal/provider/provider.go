// Package provider defines the port to the injected wallet provider. The
// provider owns key custody, signing, and nonce sequencing; this client only
// issues requests against it and listens for its change events.
package provider

import (
	"context"
	"encoding/json"
	"errors"
)

// Event names emitted by the wallet provider.
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
)

// Request methods used by this client.
const (
	MethodRequestAccounts       = "eth_requestAccounts"
	MethodAccounts              = "eth_accounts"
	MethodChainID               = "eth_chainId"
	MethodCall                  = "eth_call"
	MethodSendTransaction       = "eth_sendTransaction"
	MethodGetTransactionReceipt = "eth_getTransactionReceipt"
	MethodSwitchChain           = "wallet_switchEthereumChain"
	MethodAddChain              = "wallet_addEthereumChain"
)

// ErrUnreachable marks transport-level failures: the provider (or the node
// behind it) could not be reached at all. Distinct from the provider
// answering with an error of its own.
var ErrUnreachable = errors.New("wallet provider unreachable")

// Provider is the injected wallet surface. Requests suspend on the wallet's
// own prompts and round trips; ctx bounds the local wait only.
type Provider interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)

	// Subscribe registers a handler for a provider event and returns the
	// matching unsubscribe. Handlers may be invoked from the provider's own
	// goroutine.
	Subscribe(event string, handler func(payload json.RawMessage)) (func(), error)
}

// Error is a provider-reported failure with its wallet error code.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return "provider error"
	}
	return e.Message
}

// Wallet error codes (EIP-1193 / EIP-1474).
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeChainUnknown      = 4902
	CodeRequestPending    = -32002
	CodeInternal          = -32603
)

// IsUserRejection reports whether err is the user dismissing a wallet prompt.
func IsUserRejection(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Code == CodeUserRejected
}

// IsChainUnknown reports whether err means the wallet does not know the
// requested network and it must be registered first.
func IsChainUnknown(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Code == CodeChainUnknown
}

// IsUnsupported reports whether the provider rejected the method itself.
func IsUnsupported(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Code == CodeUnsupportedMethod
}
