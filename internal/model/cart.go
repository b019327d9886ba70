package model

import (
	"errors"
	"math"
	"math/bits"
)

// MaxQuantity is the largest quantity a single purchase can carry.
const MaxQuantity = math.MaxUint32

var (
	// ErrQuantityRange reports a line quantity below one or above MaxQuantity.
	ErrQuantityRange = errors.New("quantity out of range")
	// ErrAmountOverflow reports an IDR amount that does not fit in 64 bits.
	ErrAmountOverflow = errors.New("amount too large")
)

// MulIDR returns price*qty, failing instead of wrapping.
func MulIDR(price, qty uint64) (uint64, error) {
	hi, lo := bits.Mul64(price, qty)
	if hi != 0 {
		return 0, ErrAmountOverflow
	}
	return lo, nil
}

// AddIDR returns a+b, failing instead of wrapping.
func AddIDR(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrAmountOverflow
	}
	return sum, nil
}

// CartLine is a pending purchase intent held only on the client.
type CartLine struct {
	Product  Product
	Quantity int
}

// Validate reports whether the line can become a transaction.
func (l CartLine) Validate() error {
	if l.Quantity < 1 || uint64(l.Quantity) > MaxQuantity {
		return ErrQuantityRange
	}
	_, err := MulIDR(l.Product.PriceIDR, uint64(l.Quantity))
	return err
}

// Subtotal is the line's price at the captured unit price. It saturates at
// math.MaxUint64 rather than wrapping.
func (l CartLine) Subtotal() uint64 {
	if l.Quantity <= 0 {
		return 0
	}
	total, err := MulIDR(l.Product.PriceIDR, uint64(l.Quantity))
	if err != nil {
		return math.MaxUint64
	}
	return total
}
