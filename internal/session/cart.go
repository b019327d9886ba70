package session

import (
	"errors"
	"fmt"
	"math"

	"github.com/Veraticus/aromance/internal/common"
	"github.com/Veraticus/aromance/internal/model"
)

const opCart = "cart"

// AddToCart adds qty of p. An existing line for the same product has qty
// added to it and is removed if the result drops to zero or below. A line
// may never exceed model.MaxQuantity or a total of math.MaxUint64.
func (s *Store) AddToCart(p model.Product, qty int) error {
	if p.ID == "" {
		return common.Validation(opCart, "product id is required")
	}
	if int64(qty) > model.MaxQuantity || int64(qty) < -model.MaxQuantity {
		return quantityError(model.ErrQuantityRange)
	}

	s.mu.Lock()
	i := s.cartIndexLocked(p.ID)
	switch {
	case i >= 0:
		n := int64(s.cart[i].Quantity) + int64(qty)
		if n <= 0 {
			s.cart = append(s.cart[:i], s.cart[i+1:]...)
			break
		}
		if err := checkLine(s.cart[i].Product, n); err != nil {
			s.mu.Unlock()
			return err
		}
		s.cart[i].Quantity = int(n)
	case qty <= 0:
		s.mu.Unlock()
		return common.Validation(opCart, "quantity must be at least 1")
	default:
		if err := checkLine(p, int64(qty)); err != nil {
			s.mu.Unlock()
			return err
		}
		s.cart = append(s.cart, model.CartLine{Product: p.Clone(), Quantity: qty})
	}
	s.mu.Unlock()

	s.notify(ChangeCart)
	return nil
}

// RemoveFromCart drops the line for productID. Unknown ids are ignored.
func (s *Store) RemoveFromCart(productID string) {
	s.mu.Lock()
	i := s.cartIndexLocked(productID)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.cart = append(s.cart[:i], s.cart[i+1:]...)
	s.mu.Unlock()

	s.notify(ChangeCart)
}

// SetQuantity replaces the quantity of an existing line. qty <= 0 removes
// the line.
func (s *Store) SetQuantity(productID string, qty int) error {
	s.mu.Lock()
	i := s.cartIndexLocked(productID)
	if i < 0 {
		s.mu.Unlock()
		return common.Validation(opCart, "product is not in the cart")
	}
	if qty <= 0 {
		s.cart = append(s.cart[:i], s.cart[i+1:]...)
	} else {
		if err := checkLine(s.cart[i].Product, int64(qty)); err != nil {
			s.mu.Unlock()
			return err
		}
		s.cart[i].Quantity = qty
	}
	s.mu.Unlock()

	s.notify(ChangeCart)
	return nil
}

// ClearCart empties the cart.
func (s *Store) ClearCart() {
	s.mu.Lock()
	s.cart = nil
	s.mu.Unlock()
	s.notify(ChangeCart)
}

// CartLines returns the cart in insertion order. Each line carries the
// current catalog version of its product when the catalog is cached.
func (s *Store) CartLines() []model.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartLinesLocked()
}

// CartTotal sums the lines at current known unit prices, saturating at
// math.MaxUint64.
func (s *Store) CartTotal() uint64 {
	return sumLines(s.CartLines())
}

func sumLines(lines []model.CartLine) uint64 {
	var total uint64
	for _, l := range lines {
		sum, err := model.AddIDR(total, l.Subtotal())
		if err != nil {
			return math.MaxUint64
		}
		total = sum
	}
	return total
}

func checkLine(p model.Product, qty int64) error {
	if qty < 1 || qty > model.MaxQuantity {
		return quantityError(model.ErrQuantityRange)
	}
	return quantityError(model.CartLine{Product: p, Quantity: int(qty)}.Validate())
}

func quantityError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrQuantityRange):
		return common.Validation(opCart, fmt.Sprintf("quantity must be between 1 and %d", uint64(model.MaxQuantity)))
	default:
		return common.Validation(opCart, "line total is too large")
	}
}

func (s *Store) cartLinesLocked() []model.CartLine {
	if len(s.cart) == 0 {
		return nil
	}
	byID := make(map[string]int, len(s.products))
	for i, p := range s.products {
		byID[p.ID] = i
	}
	out := make([]model.CartLine, len(s.cart))
	for i, l := range s.cart {
		p := l.Product
		if j, ok := byID[p.ID]; ok {
			p = s.products[j]
		}
		out[i] = model.CartLine{Product: p.Clone(), Quantity: l.Quantity}
	}
	return out
}

func (s *Store) cartIndexLocked(productID string) int {
	for i, l := range s.cart {
		if l.Product.ID == productID {
			return i
		}
	}
	return -1
}
