// Package gateway is the only package that touches the shop contract's
// interface description. It encodes read queries and state-changing calls,
// decodes record data in either historical shape, and hands submission
// handles back to the transaction executor.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"faillapop/go-client/internal/provider"
	"faillapop/go-client/pkg/models"
)

var (
	ErrNotConnected        = errors.New("gateway requires a connected identity")
	ErrBadContractAddress  = errors.New("invalid shop contract address")
	ErrUnsupportedContract = errors.New("contract answers in no known interface shape")
	ErrInvalidListing      = errors.New("invalid listing")
	ErrAlreadySold         = errors.New("item is already sold")
)

// DecodeError wraps a per-record decode failure so callers can skip the
// record without aborting a whole catalog load.
type DecodeError struct {
	ID  uint64
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("record %d: undecodable: %v", e.ID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Gateway is bound to one identity and one deployed contract. It is rebuilt,
// never mutated, after an account or network change.
type Gateway struct {
	provider provider.Provider
	contract common.Address
	from     string
	logger   *slog.Logger

	mu    sync.Mutex
	shape shape
}

// New builds a gateway for the given identity. The identity must already be
// established; record addressing is network-scoped.
func New(p provider.Provider, contractAddr string, id models.Identity, logger *slog.Logger) (*Gateway, error) {
	if p == nil {
		return nil, provider.ErrUnreachable
	}
	if !id.Connected() {
		return nil, ErrNotConnected
	}
	if !common.IsHexAddress(contractAddr) {
		return nil, fmt.Errorf("%w: %q", ErrBadContractAddress, contractAddr)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		provider: p,
		contract: common.HexToAddress(contractAddr),
		from:     id.Account,
		logger:   logger,
	}, nil
}

// RecordCount reads the authoritative next-id counter, probing interface
// shapes as needed.
func (g *Gateway) RecordCount(ctx context.Context) (uint64, error) {
	var count uint64
	err := g.withShape(ctx, func(spec *shapeSpec) error {
		data, err := spec.abi.Pack(spec.countMethod)
		if err != nil {
			return err
		}
		ret, err := g.call(ctx, data)
		if err != nil {
			return err
		}
		vals, err := spec.abi.Methods[spec.countMethod].Outputs.Unpack(ret)
		if err != nil {
			return shapeMismatch(err)
		}
		n, err := asBig(vals, 0)
		if err != nil {
			return shapeMismatch(err)
		}
		count = n.Uint64()
		return nil
	})
	return count, err
}

// Record reads and decodes one remote record.
func (g *Gateway) Record(ctx context.Context, id uint64) (models.ListedItem, error) {
	var item models.ListedItem
	err := g.withShape(ctx, func(spec *shapeSpec) error {
		data, err := spec.abi.Pack(spec.recordMethod, new(big.Int).SetUint64(id))
		if err != nil {
			return err
		}
		ret, err := g.call(ctx, data)
		if err != nil {
			return err
		}
		decoded, err := decodeRecord(spec, id, ret)
		if err != nil {
			return err
		}
		item = decoded
		return nil
	})
	if err != nil {
		return models.ListedItem{}, err
	}
	return item, nil
}

// SubmitList validates and submits a create-listing call and returns the
// transaction handle. Validation failures never reach the network.
func (g *Gateway) SubmitList(ctx context.Context, name, description string, price *big.Int) (string, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidListing)
	}
	if description == "" {
		return "", fmt.Errorf("%w: empty description", ErrInvalidListing)
	}
	if price == nil || price.Sign() <= 0 {
		return "", fmt.Errorf("%w: price must be positive", ErrInvalidListing)
	}
	spec, err := g.activeShape(ctx)
	if err != nil {
		return "", err
	}
	data, err := spec.abi.Pack(spec.listMethod, name, description, price)
	if err != nil {
		return "", err
	}
	return g.sendTransaction(ctx, data, nil)
}

// SubmitPurchase re-reads the record to obtain the exact current price (the
// contract requires the payment to match it exactly) and submits the
// purchase call carrying that amount. An already-sold record is refused
// locally without a submission.
func (g *Gateway) SubmitPurchase(ctx context.Context, id uint64) (string, error) {
	item, err := g.Record(ctx, id)
	if err != nil {
		return "", err
	}
	if item.Sold {
		return "", fmt.Errorf("%w: item %d", ErrAlreadySold, id)
	}
	spec, err := g.activeShape(ctx)
	if err != nil {
		return "", err
	}
	data, err := spec.abi.Pack(spec.purchaseMethod, new(big.Int).SetUint64(id))
	if err != nil {
		return "", err
	}
	return g.sendTransaction(ctx, data, item.Price)
}

// Shape reports the latched interface shape, for diagnostics.
func (g *Gateway) Shape() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.shape.String()
}

// withShape runs op against the latched shape, or probes the known shapes
// in order until one answers. Only shape-level mismatches advance the
// probe; transport failures abort immediately.
func (g *Gateway) withShape(ctx context.Context, op func(*shapeSpec) error) error {
	g.mu.Lock()
	latched := g.shape
	g.mu.Unlock()

	if spec, ok := specFor(latched); ok {
		err := op(spec)
		if err == nil || !isShapeMismatch(err) {
			return err
		}
		g.logger.Warn("latched interface shape stopped answering, re-probing", "shape", latched.String())
	}

	for _, spec := range probeOrder {
		err := op(spec)
		if err == nil {
			g.mu.Lock()
			g.shape = spec.shape
			g.mu.Unlock()
			return nil
		}
		if !isShapeMismatch(err) {
			return err
		}
	}
	return ErrUnsupportedContract
}

func (g *Gateway) activeShape(ctx context.Context) (*shapeSpec, error) {
	g.mu.Lock()
	latched := g.shape
	g.mu.Unlock()
	if spec, ok := specFor(latched); ok {
		return spec, nil
	}
	// Writes need a latched shape; a count read settles it.
	if _, err := g.RecordCount(ctx); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	spec, ok := specFor(g.shape)
	if !ok {
		return nil, ErrUnsupportedContract
	}
	return spec, nil
}

func (g *Gateway) call(ctx context.Context, data []byte) ([]byte, error) {
	raw, err := g.provider.Request(ctx, provider.MethodCall, map[string]any{
		"to":   g.contract.Hex(),
		"data": hexutil.Encode(data),
	}, "latest")
	if err != nil {
		return nil, err
	}
	var hexRet string
	if err := json.Unmarshal(raw, &hexRet); err != nil {
		return nil, fmt.Errorf("malformed eth_call result: %w", err)
	}
	ret, err := hexutil.Decode(hexRet)
	if err != nil {
		return nil, fmt.Errorf("malformed eth_call result: %w", err)
	}
	if len(ret) == 0 {
		// Calling a selector the contract does not implement yields empty
		// return data; treat it as the wrong interface shape.
		return nil, shapeMismatch(errors.New("empty return data"))
	}
	return ret, nil
}

func (g *Gateway) sendTransaction(ctx context.Context, data []byte, value *big.Int) (string, error) {
	params := map[string]any{
		"from": g.from,
		"to":   g.contract.Hex(),
		"data": hexutil.Encode(data),
	}
	if value != nil && value.Sign() > 0 {
		params["value"] = hexutil.EncodeBig(value)
	}
	raw, err := g.provider.Request(ctx, provider.MethodSendTransaction, params)
	if err != nil {
		return "", err
	}
	var txHash string
	if err := json.Unmarshal(raw, &txHash); err != nil {
		return "", fmt.Errorf("malformed eth_sendTransaction result: %w", err)
	}
	return txHash, nil
}

// shapeMismatchError marks failures that mean "wrong interface shape", as
// opposed to transport or provider failures.
type shapeMismatchError struct{ err error }

func (e *shapeMismatchError) Error() string { return e.err.Error() }
func (e *shapeMismatchError) Unwrap() error { return e.err }

func shapeMismatch(err error) error { return &shapeMismatchError{err: err} }

func isShapeMismatch(err error) bool {
	var sm *shapeMismatchError
	return errors.As(err, &sm)
}
