// Package wallet talks to the browser wallet extension through a local
// bridge process.
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/aromance/internal/common"
	"github.com/Veraticus/aromance/internal/service"
)

// ErrWalletUnavailable means no wallet extension answered. It is always
// wrapped in a common.ErrDeclined error.
var ErrWalletUnavailable = errors.New("wallet extension not available")

// ErrPaymentUnconfirmed means a transfer request reached the wallet but
// no usable receipt came back. Funds may have moved. It is always wrapped
// in a common.ErrReconciliationNeeded error and must never be retried.
var ErrPaymentUnconfirmed = errors.New("wallet payment unconfirmed")

// errNotSent marks failures that happened before a request left the
// process.
var errNotSent = errors.New("request not sent")

// Config holds bridge settings.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Bridge is a service.Wallet backed by the local wallet bridge.
type Bridge struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
}

var _ service.Wallet = (*Bridge)(nil)

// NewBridge creates a bridge client.
func NewBridge(cfg Config, logger *slog.Logger) (*Bridge, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("%w: wallet bridge url", common.ErrMissingConfig)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type connectBody struct {
	Host              string   `json:"host"`
	AllowedServiceIDs []string `json:"allowed_service_ids"`
}

type connectReply struct {
	Connected bool `json:"connected"`
}

// RequestConnect asks the user to connect their wallet. A false result
// with no error means the user cancelled. A missing extension is a
// Declined error wrapping ErrWalletUnavailable.
func (b *Bridge) RequestConnect(ctx context.Context, req service.ConnectRequest) (bool, error) {
	const op = "wallet_connect"
	var reply connectReply
	status, err := b.post(ctx, "/connect", connectBody{Host: req.Host, AllowedServiceIDs: req.AllowedServiceIDs}, &reply)
	if isUnreachable(err) || status == http.StatusNotFound {
		b.logger.Info("wallet extension not available", "url", b.baseURL)
		return false, &common.Error{Kind: common.ErrDeclined, Op: op, Message: "Install a wallet extension to continue", Err: ErrWalletUnavailable}
	}
	if err != nil {
		return false, common.Transport(op, err)
	}
	if status == http.StatusForbidden {
		return false, nil
	}
	if status != http.StatusOK {
		return false, common.Transport(op, fmt.Errorf("bridge returned status %d", status))
	}
	return reply.Connected, nil
}

type principalReply struct {
	Principal string `json:"principal"`
}

// Principal returns the connected wallet's identity handle.
func (b *Bridge) Principal(ctx context.Context) (string, error) {
	const op = "wallet_principal"
	var reply principalReply
	status, err := b.post(ctx, "/principal", struct{}{}, &reply)
	if isUnreachable(err) {
		return "", &common.Error{Kind: common.ErrDeclined, Op: op, Message: "Wallet disconnected", Err: ErrWalletUnavailable}
	}
	if err != nil {
		return "", common.Transport(op, err)
	}
	if status != http.StatusOK {
		return "", common.Transport(op, fmt.Errorf("bridge returned status %d", status))
	}
	if reply.Principal == "" {
		return "", common.Transport(op, errors.New("bridge returned an empty principal"))
	}
	return reply.Principal, nil
}

type transferBody struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type transferReply struct {
	ReceiptID string `json:"receipt_id"`
	Timestamp uint64 `json:"timestamp"`
}

// RequestTransfer asks the wallet to pay amount to the given account. A
// user refusal is a Declined error. Once the request has been sent, any
// failure to read a receipt wraps ErrPaymentUnconfirmed.
func (b *Bridge) RequestTransfer(ctx context.Context, req service.TransferRequest) (service.Receipt, error) {
	const op = "wallet_transfer"
	var reply transferReply
	status, err := b.post(ctx, "/transfer", transferBody(req), &reply)
	switch {
	case isUnreachable(err):
		return service.Receipt{}, &common.Error{Kind: common.ErrDeclined, Op: op, Message: "Wallet disconnected", Err: ErrWalletUnavailable}
	case errors.Is(err, errNotSent):
		return service.Receipt{}, common.Transport(op, err)
	case err != nil:
		return service.Receipt{}, unconfirmed(op, err)
	}
	switch status {
	case http.StatusOK:
	case http.StatusForbidden:
		return service.Receipt{}, common.Declined(op, "Transfer cancelled in wallet")
	case http.StatusPaymentRequired:
		return service.Receipt{}, common.Declined(op, "Insufficient wallet balance")
	default:
		return service.Receipt{}, common.Transport(op, fmt.Errorf("bridge returned status %d", status))
	}
	if reply.ReceiptID == "" {
		return service.Receipt{}, unconfirmed(op, errors.New("bridge returned no receipt"))
	}

	at := time.Now().UTC()
	if reply.Timestamp != 0 {
		at = time.Unix(0, int64(reply.Timestamp)).UTC()
	}
	b.logger.Info("wallet transfer completed", "receipt", reply.ReceiptID, "amount", req.Amount)
	return service.Receipt{ID: reply.ReceiptID, To: req.To, Amount: req.Amount, At: at}, nil
}

func unconfirmed(op string, cause error) error {
	return &common.Error{
		Kind:    common.ErrReconciliationNeeded,
		Op:      op,
		Message: "The wallet did not confirm the payment",
		Err:     fmt.Errorf("%w: %w", ErrPaymentUnconfirmed, cause),
	}
}

// post sends body as JSON and decodes a 200 response into out. The
// status code is returned for every response that arrived. Failures
// before the request left the process wrap errNotSent.
func (b *Bridge) post(ctx context.Context, path string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to marshal request: %w", errNotSent, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create request: %w", errNotSent, err)
	}
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", errNotSent, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.StatusCode, nil
}

// isUnreachable reports whether err means nothing is listening.
func isUnreachable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
