package session

import (
	"fmt"

	"github.com/Veraticus/aromance/internal/common"
	"github.com/Veraticus/aromance/internal/model"
)

const opSetIdentity = "set_identity"

// IdentityPatch changes the DID and tier together. Empty fields are left
// unchanged.
type IdentityPatch struct {
	DID  string
	Tier model.VerificationStatus
}

// Identity returns who is signed in.
func (s *Store) Identity() model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// SetWallet records a connected wallet. Connecting a different wallet
// than the current one drops everything cached for the previous user and
// starts a new generation.
func (s *Store) SetWallet(addr string) error {
	if addr == "" {
		return common.Validation("set_wallet", "wallet address is required")
	}

	s.mu.Lock()
	if s.identity.WalletAddress == addr {
		s.mu.Unlock()
		return nil
	}
	s.resetUserLocked()
	s.identity = model.Identity{WalletAddress: addr, Tier: model.Unverified}
	s.mu.Unlock()

	s.notify(ChangeIdentity, ChangeCart, ChangeProfile, ChangeRecommendations, ChangeTransactions, ChangeConsultation)
	return nil
}

// ClearIdentity signs the user out. The cart and every user-scoped cache
// entry are dropped; the catalog survives.
func (s *Store) ClearIdentity() {
	s.mu.Lock()
	s.resetUserLocked()
	s.identity = model.Identity{}
	s.mu.Unlock()

	s.notify(ChangeIdentity, ChangeCart, ChangeProfile, ChangeRecommendations, ChangeTransactions, ChangeConsultation)
}

func (s *Store) resetUserLocked() {
	s.generation++
	s.profile = nil
	s.recommendations = nil
	s.transactions = nil
	s.cart = nil
	s.consultation = Consultation{}
}

// SetIdentity applies patch atomically. A DID, once set, never changes.
// A tier above Unverified requires the cached profile to carry a stake
// whose tier grants it.
func (s *Store) SetIdentity(patch IdentityPatch) error {
	s.mu.Lock()
	if !s.identity.Connected() {
		s.mu.Unlock()
		return common.Validation(opSetIdentity, "no wallet connected")
	}

	next := s.identity
	if patch.DID != "" {
		if !model.IsDID(patch.DID) {
			s.mu.Unlock()
			return common.Validation(opSetIdentity, fmt.Sprintf("malformed decentralized identifier %q", patch.DID))
		}
		if next.DID != "" && next.DID != patch.DID {
			s.mu.Unlock()
			return common.Validation(opSetIdentity, "decentralized identifier is already set")
		}
		next.DID = patch.DID
	}
	if patch.Tier != "" {
		if err := s.checkTierLocked(patch.Tier); err != nil {
			s.mu.Unlock()
			return err
		}
		next.Tier = patch.Tier
	}

	changed := next != s.identity
	s.identity = next
	s.mu.Unlock()

	if changed {
		s.notify(ChangeIdentity)
	}
	return nil
}

func (s *Store) checkTierLocked(tier model.VerificationStatus) error {
	if !tier.Valid() {
		return common.Validation(opSetIdentity, fmt.Sprintf("unknown verification tier %q", tier))
	}
	if tier == model.Unverified {
		return nil
	}
	if s.profile == nil || s.profile.Stake == nil {
		return common.Validation(opSetIdentity, "verification tier requires a stake")
	}
	if s.profile.Stake.Tier.Verification() != tier {
		return common.Validation(opSetIdentity, fmt.Sprintf("stake grants %s, not %s", s.profile.Stake.Tier.Verification(), tier))
	}
	return nil
}
