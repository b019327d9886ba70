package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Veraticus/aromance/internal/service"
)

const maxRequestBody = 1 << 20

// Server exposes a service.Ledger over the wire contract.
type Server struct {
	ledger   service.Ledger
	logger   *slog.Logger
	handlers map[string]rpcHandler
}

type rpcHandler func(ctx context.Context, body []byte) (any, error)

// NewServer creates a wire server for l.
func NewServer(l service.Ledger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{ledger: l, logger: logger}
	s.handlers = map[string]rpcHandler{
		MethodGetProfile:         s.getProfile,
		MethodCreateProfile:      s.createProfile,
		MethodCreateIdentity:     s.createIdentity,
		MethodStake:              s.stake,
		MethodProcessRewards:     s.processRewards,
		MethodProducts:           s.products,
		MethodSearchProducts:     s.searchProducts,
		MethodSearchPersonality:  s.searchByPersonality,
		MethodHalalProducts:      s.halalProducts,
		MethodRecommendations:    s.recommendations,
		MethodGenerateRecs:       s.generateRecommendations,
		MethodCreateTransaction:  s.createTransaction,
		MethodUserTransactions:   s.transactions,
		MethodCreateReview:       s.createReview,
		MethodProductReviews:     s.reviews,
		MethodPlatformStatistics: s.platformStats,
	}
	return s
}

// Router returns the HTTP routes of the server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Post("/rpc/{method}", s.handle)
	return r
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	method := chi.URLParam(r, "method")
	h, ok := s.handlers[method]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown method %q", method), http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		http.Error(w, "failed to read request", http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}

	out, err := h(r.Context(), body)
	var rej *service.RejectionError
	switch {
	case errors.As(err, &rej):
		out = errResult(rej.Message)
	case errors.Is(err, errBadRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		s.logger.Error("ledger method failed", "method", method, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.logger.Warn("failed to write response", "method", method, "error", err)
	}
}

var errBadRequest = errors.New("bad request")

func decodeArgs(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// wrapOk wraps a write result in the Ok envelope.
func wrapOk(payload any) (any, error) {
	return okResult(payload)
}

func (s *Server) getProfile(ctx context.Context, body []byte) (any, error) {
	var args userArgs
	if err := decodeArgs(body, &args); err != nil {
		return nil, err
	}
	p, err := s.ledger.GetProfile(ctx, args.UserID)
	if err != nil || p == nil {
		return Opt[wireProfile]{}, err
	}
	w, err := toWireProfile(*p)
	if err != nil {
		return nil, err
	}
	return Some(w), nil
}

func (s *Server) createProfile(ctx context.Context, body []byte) (any, error) {
	var args profileArgs
	if err := decodeArgs(body, &args); err != nil {
		return nil, err
	}
	p, err := fromWireProfile(args.Profile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	id, err := s.ledger.CreateProfile(ctx, p)
	if err != nil {
		return nil, err
	}
	return wrapOk(id)
}

func (s *Server) createIdentity(ctx context.Context, body []byte) (any, error) {
	var args identityArgs
	if err := decodeArgs(body, &args); err != nil {
		return nil, err
	}
	fp, err := fromWireFragrance(args.PersonalityData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	id, err := s.ledger.CreateIdentity(ctx, args.UserID, fp)
	if err != nil {
		return nil, err
	}
	return wrapOk(toWireIdentity(id))
}

func (s *Server) stake(ctx context.Context, body []byte) (any, error) {
	var args stakeArgs
	if err := decodeArgs(body, &args); err != nil {
		return nil, err
	}
	tier, err := decodeStakeTier(args.Tier)
	if err != nil {
		return nil, &service.RejectionError{Message: "Unknown verification tier"}
	}
	msg, err := s.ledger.Stake(ctx, service.StakeRequest{
		UserID:         args.UserID,
		Amount:         args.Amount,
		Tier:           tier,
		PaymentReceipt: args.PaymentReceipt,
	})
	if err != nil {
		return nil, err
	}
	return wrapOk(msg)
}

func (s *Server) processRewards(ctx context.Context, _ []byte) (any, error) {
	msg, err := s.ledger.ProcessStakeRewards(ctx)
	if err != nil {
		return nil, err
	}
	return wrapOk(msg)
}

func (s *Server) products(ctx context.Context, _ []byte) (any, error) {
	ps, err := s.ledger.Products(ctx)
	if err != nil {
		return nil, err
	}
	return mapList(ps, toWireProduct), nil
}

func (s *Server) searchProducts(ctx context.Context, body []byte) (any, error) {
	var args searchArgs
	if err := decodeArgs(body, &args); err != nil {
		return nil, err
	}
	ps, err := s.ledger.SearchProducts(ctx, args.filter())
	if err != nil {
		return nil, err
	}
	return mapList(ps, toWireProduct), nil
}

func (s *Server) searchByPersonality(ctx context.Context, body []byte) (any, error) {
	var args personalityArgs
	if err := decodeArgs(body, &args); err != nil {
		return nil, err
	}
	ps, err := s.ledger.SearchByPersonality(ctx, args.PersonalityType)
	if err != nil {
		return nil, err
	}
	return mapList(ps, toWireProduct), nil
}

func (s *Server) halalProducts(ctx context.Context, _ []byte) (any, error) {
	ps, err := s.ledger.HalalProducts(ctx)
	if err != nil {
		return nil, err
	}
	return mapList(ps, toWireProduct), nil
}

func (s *Server) recommendations(ctx context.Context, body []byte) (any, error) {
	var args userArgs
	if err := decodeArgs(body, &args); err != nil {
		return nil, err
	}
	recs, err := s.ledger.Recommendations(ctx, args.UserID)
	if err != nil {
		return nil, err
	}
	return mapList(recs, toWireRecommendation), nil
}

func (s *Server) generateRecommendations(ctx context.Context, body []byte) (any, error) {
	var args userArgs
	if err := decodeArgs(body, &args); err != nil {
		return nil, err
	}
	recs, err := s.ledger.GenerateRecommendations(ctx, args.UserID)
	if err != nil {
		return nil, err
	}
	return wrapOk(mapList(recs, toWireRecommendation))
}

func (s *Server) createTransaction(ctx context.Context, body []byte) (any, error) {
	var args transactionArgs
	if err := decodeArgs(body, &args); err != nil {
		return nil, err
	}
	tx, err := fromWireTransaction(args.Transaction)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	id, err := s.ledger.CreateTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}
	return wrapOk(id)
}

func (s *Server) transactions(ctx context.Context, body []byte) (any, error) {
	var args userArgs
	if err := decodeArgs(body, &args); err != nil {
		return nil, err
	}
	txs, err := s.ledger.Transactions(ctx, args.UserID)
	if err != nil {
		return nil, err
	}
	return mapList(txs, toWireTransaction), nil
}

func (s *Server) createReview(ctx context.Context, body []byte) (any, error) {
	var args reviewArgs
	if err := decodeArgs(body, &args); err != nil {
		return nil, err
	}
	r, err := fromWireReview(args.Review)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	id, err := s.ledger.CreateReview(ctx, r)
	if err != nil {
		return nil, err
	}
	return wrapOk(id)
}

func (s *Server) reviews(ctx context.Context, body []byte) (any, error) {
	var args productArgs
	if err := decodeArgs(body, &args); err != nil {
		return nil, err
	}
	rs, err := s.ledger.Reviews(ctx, args.ProductID)
	if err != nil {
		return nil, err
	}
	out := make([]wireReview, 0, len(rs))
	for _, r := range rs {
		w, err := toWireReview(r)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func (s *Server) platformStats(ctx context.Context, _ []byte) (any, error) {
	stats, err := s.ledger.PlatformStats(ctx)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = map[string]uint64{}
	}
	return map[string]uint64(stats), nil
}

func mapList[M, W any](items []M, fn func(M) W) []W {
	out := make([]W, 0, len(items))
	for _, m := range items {
		out = append(out, fn(m))
	}
	return out
}
