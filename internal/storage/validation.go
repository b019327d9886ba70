// Package storage provides the SQLite-backed development service of
// record and the payment journal.
package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/Veraticus/aromance/internal/model"
)

// Validation errors.
var (
	ErrNilContext      = errors.New("context cannot be nil")
	ErrEmptyString     = errors.New("string parameter cannot be empty")
	ErrInvalidProduct  = errors.New("invalid product")
	ErrInvalidReceipt  = errors.New("invalid payment receipt")
	ErrReceiptNotFound = errors.New("payment receipt not found")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateProduct checks the fields a catalog entry must carry.
func validateProduct(p model.Product) error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidProduct)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidProduct)
	}
	if strings.TrimSpace(p.SellerID) == "" {
		return fmt.Errorf("%w: missing seller", ErrInvalidProduct)
	}
	return nil
}

// checkTransaction applies the service's acceptance rules to a purchase.
func checkTransaction(tx model.Transaction) error {
	switch {
	case tx.BuyerID == "":
		return reject("Buyer is required")
	case tx.ProductID == "":
		return reject("Product is required")
	case tx.Quantity == 0:
		return reject("Quantity must be positive")
	}
	// Amounts are stored as INTEGER, which is signed 64-bit.
	total, err := model.MulIDR(tx.UnitPrice, uint64(tx.Quantity))
	if err != nil || total > math.MaxInt64 || tx.TotalAmount > math.MaxInt64 {
		return reject("Total exceeds the supported amount")
	}
	return nil
}

func newID() string {
	return uuid.New().String()
}
