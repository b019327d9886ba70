package model

import "time"

// UserProfile is the remote-authoritative record for a wallet.
type UserProfile struct {
	CreatedAt               time.Time
	LastActive              time.Time
	Stake                   *StakeRecord
	Preferences             map[string]string
	UserID                  string
	WalletAddress           string
	DID                     string
	Verification            VerificationStatus
	ReputationScore         float64
	TotalTransactions       uint32
	ConsultationCompleted   bool
	AIConsent               bool
	DataMonetizationConsent bool
}

// NewUserProfile returns the default profile created on first sign-in.
func NewUserProfile(wallet string, now time.Time) UserProfile {
	return UserProfile{
		UserID:                  wallet,
		WalletAddress:           wallet,
		Verification:            Unverified,
		Preferences:             map[string]string{},
		AIConsent:               true,
		DataMonetizationConsent: true,
		CreatedAt:               now,
		LastActive:              now,
	}
}

// Clone returns a deep copy so callers never share mutable state.
func (p UserProfile) Clone() UserProfile {
	out := p
	if p.Stake != nil {
		s := *p.Stake
		out.Stake = &s
	}
	if p.Preferences != nil {
		out.Preferences = make(map[string]string, len(p.Preferences))
		for k, v := range p.Preferences {
			out.Preferences[k] = v
		}
	}
	return out
}
