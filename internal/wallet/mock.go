package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Veraticus/aromance/internal/service"
)

// Mock is a scriptable service.Wallet for tests and the offline shell.
type Mock struct {
	// Functions that can be set by tests to control behavior
	ConnectFn   func(ctx context.Context, req service.ConnectRequest) (bool, error)
	PrincipalFn func(ctx context.Context) (string, error)
	TransferFn  func(ctx context.Context, req service.TransferRequest) (service.Receipt, error)

	// Call tracking
	ConnectCalls   []service.ConnectRequest
	TransferCalls  []service.TransferRequest
	PrincipalCalls int

	principal string
	mu        sync.Mutex
}

// NewMock creates a wallet that connects as principal and approves every
// transfer.
func NewMock(principal string) *Mock {
	return &Mock{principal: principal}
}

// RequestConnect implements service.Wallet.
func (m *Mock) RequestConnect(ctx context.Context, req service.ConnectRequest) (bool, error) {
	m.mu.Lock()
	m.ConnectCalls = append(m.ConnectCalls, req)
	fn := m.ConnectFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return true, nil
}

// Principal implements service.Wallet.
func (m *Mock) Principal(ctx context.Context) (string, error) {
	m.mu.Lock()
	m.PrincipalCalls++
	fn := m.PrincipalFn
	principal := m.principal
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return principal, nil
}

// RequestTransfer implements service.Wallet.
func (m *Mock) RequestTransfer(ctx context.Context, req service.TransferRequest) (service.Receipt, error) {
	m.mu.Lock()
	m.TransferCalls = append(m.TransferCalls, req)
	n := len(m.TransferCalls)
	fn := m.TransferFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return service.Receipt{
		ID:     fmt.Sprintf("rcpt-%d", n),
		To:     req.To,
		Amount: req.Amount,
		At:     time.Now().UTC(),
	}, nil
}

// Transfers returns how many transfers were requested.
func (m *Mock) Transfers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.TransferCalls)
}

// Reset clears all call tracking.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConnectCalls = nil
	m.TransferCalls = nil
	m.PrincipalCalls = 0
}

var _ service.Wallet = (*Mock)(nil)
