package engine

import (
	"context"

	"github.com/Veraticus/aromance/internal/model"
	"github.com/Veraticus/aromance/internal/service"
)

// Gateway is the remote catalog and profile gateway as the orchestrator
// uses it. *gateway.Gateway satisfies it.
type Gateway interface {
	GetProfile(ctx context.Context, userID string) (*model.UserProfile, error)
	CreateProfile(ctx context.Context, profile model.UserProfile) (string, error)
	UpdateProfile(ctx context.Context, profile model.UserProfile) (string, error)
	CreateIdentity(ctx context.Context, userID string, fp model.FragranceProfile) (model.DecentralizedIdentity, error)
	Stake(ctx context.Context, req service.StakeRequest) (string, error)
	ClaimRewards(ctx context.Context) (string, error)
	Products(ctx context.Context) ([]model.Product, error)
	SearchProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, error)
	SearchByPersonality(ctx context.Context, query string) ([]model.Product, error)
	HalalProducts(ctx context.Context) ([]model.Product, error)
	Recommendations(ctx context.Context, userID string) ([]model.Recommendation, error)
	CreateTransaction(ctx context.Context, tx model.Transaction) (string, error)
	Transactions(ctx context.Context, userID string) ([]model.Transaction, error)
	CreateReview(ctx context.Context, review model.Review) (string, error)
	Reviews(ctx context.Context, productID string) ([]model.Review, error)
	PlatformStats(ctx context.Context) (model.PlatformStats, error)
}

// Level is the severity of a notice.
type Level string

// Notice levels.
const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is one user-facing message. Action, when set, suggests what the
// user can do next.
type Notice struct {
	Level   Level
	Op      string
	Message string
	Action  string
}

// Notifier is the single channel for user-facing messages.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notice) { f(n) }
