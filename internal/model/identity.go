// Package model defines the core domain models used throughout the application.
package model

import (
	"strings"
	"time"
)

// VerificationStatus is the trust tier derived from a user's stake.
type VerificationStatus string

// Verification status constants.
const (
	Unverified VerificationStatus = "Unverified"
	Basic      VerificationStatus = "Basic"
	Premium    VerificationStatus = "Premium"
	Elite      VerificationStatus = "Elite"
)

// Rank orders verification statuses so callers can compare them.
func (v VerificationStatus) Rank() int {
	switch v {
	case Basic:
		return 1
	case Premium:
		return 2
	case Elite:
		return 3
	default:
		return 0
	}
}

// Valid reports whether v is one of the known statuses.
func (v VerificationStatus) Valid() bool {
	switch v {
	case Unverified, Basic, Premium, Elite:
		return true
	}
	return false
}

// Identity is the client's view of who is signed in.
type Identity struct {
	WalletAddress string
	DID           string
	Tier          VerificationStatus
}

// Connected reports whether a wallet address is known.
func (i Identity) Connected() bool {
	return i.WalletAddress != ""
}

// ShortWallet abbreviates the wallet address for display.
func (i Identity) ShortWallet() string {
	if len(i.WalletAddress) <= 12 {
		return i.WalletAddress
	}
	return i.WalletAddress[:5] + "..." + i.WalletAddress[len(i.WalletAddress)-3:]
}

// DIDPrefix is prepended to a user id to form its decentralized identifier.
const DIDPrefix = "did:icp:aromance:"

// DIDFor returns the decentralized identifier assigned to a user.
func DIDFor(userID string) string {
	return DIDPrefix + userID
}

// IsDID reports whether s looks like an identifier issued by DIDFor.
func IsDID(s string) bool {
	return strings.HasPrefix(s, DIDPrefix) && len(s) > len(DIDPrefix)
}

// FragranceProfile is the preference profile gathered during consultation.
type FragranceProfile struct {
	PersonalityType     string
	Lifestyle           string
	PreferredFamilies   []string
	OccasionPreferences []string
	SeasonPreferences   []string
	SensitivityLevel    string
	Budget              BudgetRange
}

// BudgetRange is the spending band a user declared during consultation.
type BudgetRange string

// Budget ranges.
const (
	BudgetLow      BudgetRange = "Budget"
	BudgetModerate BudgetRange = "Moderate"
	BudgetPremium  BudgetRange = "Premium"
	BudgetLuxury   BudgetRange = "Luxury"
)

// DecentralizedIdentity is the remote identity record created after consultation.
type DecentralizedIdentity struct {
	CreatedAt time.Time
	DID       string
	UserID    string
	PublicKey string
	Profile   FragranceProfile
}

// Clone returns a copy of fp that shares no slices with it.
func (fp FragranceProfile) Clone() FragranceProfile {
	out := fp
	out.PreferredFamilies = cloneStrings(fp.PreferredFamilies)
	out.OccasionPreferences = cloneStrings(fp.OccasionPreferences)
	out.SeasonPreferences = cloneStrings(fp.SeasonPreferences)
	return out
}
