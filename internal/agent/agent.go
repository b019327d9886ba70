// Package agent provides HTTP clients for the independent AI agents:
// consultation, recommendation, inventory, and analytics.
//
// The agents are optional collaborators. Every failure, whether a
// timeout, a refused connection, or a bad status, is reported as
// common.ErrFeatureUnavailable so callers can degrade instead of fail.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/aromance/internal/common"
	"github.com/Veraticus/aromance/internal/metrics"
)

// DefaultTimeout bounds every agent call. It is independent of ledger
// call timeouts.
const DefaultTimeout = 8 * time.Second

// Agent names used in logs and metrics.
const (
	NameConsultation   = "consultation"
	NameRecommendation = "recommendation"
	NameInventory      = "inventory"
	NameAnalytics      = "analytics"
)

// Config holds the base URL of each agent.
type Config struct {
	Consultation   string
	Recommendation string
	Inventory      string
	Analytics      string
	Timeout        time.Duration
}

// Agents bundles one client per agent.
type Agents struct {
	Consultation   *ConsultationClient
	Recommendation *RecommendationClient
	Inventory      *InventoryClient
	Analytics      *AnalyticsClient
}

// New creates clients for every configured agent.
func New(cfg Config, logger *slog.Logger) (*Agents, error) {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	build := func(name, url string) (*caller, error) {
		if strings.TrimSpace(url) == "" {
			return nil, fmt.Errorf("%w: %s agent url", common.ErrMissingConfig, name)
		}
		return &caller{
			name:       name,
			baseURL:    strings.TrimRight(url, "/"),
			httpClient: httpClient,
			logger:     logger.With("agent", name),
		}, nil
	}

	consultation, err := build(NameConsultation, cfg.Consultation)
	if err != nil {
		return nil, err
	}
	recommendation, err := build(NameRecommendation, cfg.Recommendation)
	if err != nil {
		return nil, err
	}
	inventory, err := build(NameInventory, cfg.Inventory)
	if err != nil {
		return nil, err
	}
	analytics, err := build(NameAnalytics, cfg.Analytics)
	if err != nil {
		return nil, err
	}

	return &Agents{
		Consultation:   &ConsultationClient{c: consultation},
		Recommendation: &RecommendationClient{c: recommendation},
		Inventory:      &InventoryClient{c: inventory},
		Analytics:      &AnalyticsClient{c: analytics},
	}, nil
}

// caller performs JSON POSTs against one agent.
type caller struct {
	httpClient *http.Client
	logger     *slog.Logger
	name       string
	baseURL    string
}

// errBadStatus marks a non-200 agent response.
var errBadStatus = errors.New("unexpected status")

func (c *caller) post(ctx context.Context, path string, body, out any) error {
	err := c.do(ctx, path, body, out)
	if err != nil {
		metrics.RecordAgentCall(c.name, "unavailable")
		c.logger.Debug("Agent call failed", "path", path, "error", err)
		return common.Unavailable(c.name+path, err)
	}
	metrics.RecordAgentCall(c.name, "ok")
	return nil
}

func (c *caller) do(ctx context.Context, path string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w %d: %s", errBadStatus, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
