// Package view derives render models from a session snapshot. Nothing
// here holds state; every value is recomputed by Project.
package view

// Section sizes for the recommendation feed.
const (
	TopPicks     = 6
	MightLike    = 12
	DiscoverPage = 8
)

// SectionKind identifies a product section.
type SectionKind int

const (
	// SectionAIRecommended holds the best recommendation matches.
	SectionAIRecommended SectionKind = iota
	// SectionMightLike holds the next-best matches.
	SectionMightLike
	// SectionDiscover pages through the remaining matches.
	SectionDiscover
)

// String returns the section heading.
func (k SectionKind) String() string {
	switch k {
	case SectionAIRecommended:
		return "AI Recommended For You"
	case SectionMightLike:
		return "You Might Also Like"
	case SectionDiscover:
		return "Discover More"
	default:
		return "Products"
	}
}

// Badge is a derived product marker.
type Badge string

// Product badges.
const (
	BadgeVerified Badge = "Verified"
	BadgeHalal    Badge = "Halal"
	BadgeAI       Badge = "AI Match"
)

// Model is the whole screen.
type Model struct {
	Identity     IdentityBanner
	Consultation ConsultationView
	Cart         CartSummary
	Sections     []Section
	Loading      []string
	Page         int
	Pages        int
	ShowConsult  bool
	ShowCart     bool
}

// Section is one titled list of product cards.
type Section struct {
	Title string
	Cards []ProductCard
	Kind  SectionKind
}

// ProductCard is one product as displayed.
type ProductCard struct {
	ID         string
	Name       string
	Brand      string
	Family     string
	Price      string
	Badges     []Badge
	MatchScore float64
}

// HasBadge reports whether the card carries b.
func (c ProductCard) HasBadge(b Badge) bool {
	for _, have := range c.Badges {
		if have == b {
			return true
		}
	}
	return false
}

// CartSummary is the cart panel.
type CartSummary struct {
	Total string
	Items []CartItem
	Lines int
	Units int
}

// CartItem is one cart line as displayed.
type CartItem struct {
	ProductID string
	Name      string
	Subtotal  string
	Quantity  int
}

// IdentityBanner is the signed-in header.
type IdentityBanner struct {
	Wallet    string
	DID       string
	Tier      string
	Connected bool
	Verified  bool
}

// ConsultationView is the consultation panel.
type ConsultationView struct {
	State     string
	NextStep  string
	LastReply string
	FollowUps []string
	Progress  ProgressView
}

// ProgressView represents progress information.
type ProgressView struct {
	Current int
	Total   int
}

// IsComplete returns true if progress has reached 100%.
func (p ProgressView) IsComplete() bool {
	return p.Total > 0 && p.Current >= p.Total
}

// IsEmpty reports whether the model has no product sections.
func (m Model) IsEmpty() bool {
	return len(m.Sections) == 0
}
