package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// StakeRole is the marketplace role a stake qualifies for.
type StakeRole string

// Stake roles.
const (
	RoleReviewer StakeRole = "Reviewer"
	RoleSeller   StakeRole = "Seller"
)

// StakeLevel is the size class of a stake.
type StakeLevel string

// Stake levels.
const (
	LevelBasic   StakeLevel = "Basic"
	LevelPremium StakeLevel = "Premium"
	LevelElite   StakeLevel = "Elite"
)

// StakeLockPeriod is how long staked funds stay locked.
const StakeLockPeriod = 365 * 24 * time.Hour

// StakeTier identifies one of the six stake offerings.
type StakeTier struct {
	Role  StakeRole
	Level StakeLevel
}

// Name returns the canonical variant name, e.g. "BasicReviewer".
func (t StakeTier) Name() string {
	return string(t.Level) + string(t.Role)
}

// DisplayName returns the human label, e.g. "Basic Reviewer".
func (t StakeTier) DisplayName() string {
	return string(t.Level) + " " + string(t.Role)
}

// Verification maps a stake tier to the verification status it grants.
func (t StakeTier) Verification() VerificationStatus {
	switch t.Level {
	case LevelBasic:
		return Basic
	case LevelPremium:
		return Premium
	case LevelElite:
		return Elite
	default:
		return Unverified
	}
}

// StakeOffering is a row of the static stake tier table.
type StakeOffering struct {
	Tier             StakeTier
	Amount           uint64
	AnnualReturnRate float64 // percent
}

// StakeTiers is the fixed table of stake offerings.
var StakeTiers = []StakeOffering{
	{Tier: StakeTier{RoleReviewer, LevelBasic}, Amount: 300_000, AnnualReturnRate: 6.0},
	{Tier: StakeTier{RoleReviewer, LevelPremium}, Amount: 950_000, AnnualReturnRate: 7.5},
	{Tier: StakeTier{RoleReviewer, LevelElite}, Amount: 1_900_000, AnnualReturnRate: 9.0},
	{Tier: StakeTier{RoleSeller, LevelBasic}, Amount: 500_000, AnnualReturnRate: 6.0},
	{Tier: StakeTier{RoleSeller, LevelPremium}, Amount: 1_500_000, AnnualReturnRate: 7.5},
	{Tier: StakeTier{RoleSeller, LevelElite}, Amount: 3_000_000, AnnualReturnRate: 9.0},
}

// ErrUnknownStakeTier is returned when a tier name does not resolve.
var ErrUnknownStakeTier = errors.New("unknown stake tier")

// ResolveStakeTier resolves a display or variant name to its offering.
// Matching ignores case and whitespace, so "basic reviewer" and
// "BasicReviewer" are equivalent.
func ResolveStakeTier(name string) (StakeOffering, error) {
	key := normalizeTierName(name)
	for _, o := range StakeTiers {
		if normalizeTierName(o.Tier.Name()) == key {
			return o, nil
		}
	}
	return StakeOffering{}, fmt.Errorf("%w: %q", ErrUnknownStakeTier, name)
}

// OfferingFor returns the table row for a tier.
func OfferingFor(tier StakeTier) (StakeOffering, bool) {
	for _, o := range StakeTiers {
		if o.Tier == tier {
			return o, true
		}
	}
	return StakeOffering{}, false
}

func normalizeTierName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}

// StakeRecord is an active stake held by a user.
type StakeRecord struct {
	LockedUntil      time.Time
	Tier             StakeTier
	Amount           uint64
	RewardEarned     uint64
	AnnualReturnRate float64
	PenaltyCount     uint32
}

// NewStakeRecord builds a stake record for a tier. Amount and tier are
// always set together.
func NewStakeRecord(amount uint64, tier StakeTier, now time.Time) (StakeRecord, error) {
	o, ok := OfferingFor(tier)
	if !ok {
		return StakeRecord{}, fmt.Errorf("%w: %s", ErrUnknownStakeTier, tier.Name())
	}
	if amount < o.Amount {
		return StakeRecord{}, fmt.Errorf("insufficient stake for %s: need %d, got %d", tier.DisplayName(), o.Amount, amount)
	}
	return StakeRecord{
		Amount:           amount,
		Tier:             tier,
		LockedUntil:      now.Add(StakeLockPeriod),
		AnnualReturnRate: o.AnnualReturnRate,
	}, nil
}

// AccruedReward computes the reward earned over elapsed time at the
// record's annual rate.
func (s StakeRecord) AccruedReward(elapsed time.Duration) uint64 {
	if elapsed <= 0 {
		return 0
	}
	years := elapsed.Hours() / (24 * 365)
	return uint64(float64(s.Amount) * s.AnnualReturnRate / 100 * years)
}
