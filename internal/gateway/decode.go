package gateway

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"faillapop/go-client/pkg/models"
)

// decodeRecord turns raw return data into a ListedItem. Field-name access
// is used when the shape's outputs carry names; otherwise fields are read
// from their fixed positions (seller, name, description, price, then
// optionally sold and mediaRef). A missing sold flag defaults to false and
// a missing media locator to empty; the remote record stays authoritative
// for both.
func decodeRecord(spec *shapeSpec, id uint64, data []byte) (models.ListedItem, error) {
	method, ok := spec.abi.Methods[spec.recordMethod]
	if !ok {
		return models.ListedItem{}, shapeMismatch(fmt.Errorf("shape %s has no record method", spec.shape))
	}
	vals, err := method.Outputs.Unpack(data)
	if err != nil {
		return models.ListedItem{}, &DecodeError{ID: id, Err: err}
	}

	named := true
	byName := make(map[string]any, len(vals))
	for i, out := range method.Outputs {
		if out.Name == "" {
			named = false
			break
		}
		byName[out.Name] = vals[i]
	}

	item := models.ListedItem{ID: id}
	if named {
		err = extractNamed(&item, byName)
	} else {
		err = extractPositional(&item, vals)
	}
	if err != nil {
		return models.ListedItem{}, &DecodeError{ID: id, Err: err}
	}
	item.Seller = models.NormalizeAddress(item.Seller)
	return item, nil
}

func extractNamed(item *models.ListedItem, byName map[string]any) error {
	var err error
	if item.Name, err = stringField(byName, "name"); err != nil {
		return err
	}
	if item.Description, err = stringField(byName, "description"); err != nil {
		return err
	}
	price, ok := byName["price"].(*big.Int)
	if !ok {
		return errors.New("missing price field")
	}
	item.Price = price
	seller, ok := byName["seller"].(common.Address)
	if !ok {
		return errors.New("missing seller field")
	}
	item.Seller = seller.Hex()
	if sold, ok := byName["isSold"].(bool); ok {
		item.Sold = sold
	}
	if ref, ok := byName["mediaRef"].(string); ok {
		item.MediaRef = ref
	}
	return nil
}

func extractPositional(item *models.ListedItem, vals []any) error {
	if len(vals) < 4 {
		return fmt.Errorf("record tuple too short: %d fields", len(vals))
	}
	seller, ok := vals[0].(common.Address)
	if !ok {
		return errors.New("field 0 is not an address")
	}
	item.Seller = seller.Hex()
	name, ok := vals[1].(string)
	if !ok {
		return errors.New("field 1 is not a string")
	}
	item.Name = name
	description, ok := vals[2].(string)
	if !ok {
		return errors.New("field 2 is not a string")
	}
	item.Description = description
	price, ok := vals[3].(*big.Int)
	if !ok {
		return errors.New("field 3 is not an integer")
	}
	item.Price = price
	if len(vals) > 4 {
		if sold, ok := vals[4].(bool); ok {
			item.Sold = sold
		}
	}
	if len(vals) > 5 {
		if ref, ok := vals[5].(string); ok {
			item.MediaRef = ref
		}
	}
	return nil
}

func stringField(byName map[string]any, key string) (string, error) {
	v, ok := byName[key].(string)
	if !ok {
		return "", fmt.Errorf("missing %s field", key)
	}
	return v, nil
}

func asBig(vals []any, idx int) (*big.Int, error) {
	if idx >= len(vals) {
		return nil, fmt.Errorf("missing output %d", idx)
	}
	v, ok := vals[idx].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("output %d is not an integer", idx)
	}
	return v, nil
}
