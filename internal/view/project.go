package view

import (
	"math"
	"sort"

	"github.com/Veraticus/aromance/internal/model"
	"github.com/Veraticus/aromance/internal/session"
)

// Options are the view-local inputs that are not part of the session.
type Options struct {
	// Page is the zero-based Discover page. Out-of-range pages clamp.
	Page int
}

// Project builds the render model for snap.
func Project(snap session.Snapshot, opts Options) Model {
	m := Model{
		Identity:     identityBanner(snap.Identity),
		Consultation: consultationView(snap.Consultation),
		Cart:         cartSummary(snap.Cart, snap.CartTotal),
		Loading:      loadingOps(snap.Loading),
	}
	m.ShowCart = len(snap.Cart) > 0

	if snap.Consultation.State != session.ConsultationCompleted {
		m.ShowConsult = snap.Identity.Connected()
		return m
	}

	catalog := make(map[string]model.Product, len(snap.Products))
	for _, p := range snap.Products {
		catalog[p.ID] = p
	}
	recs := snap.Recommendations

	m.Pages = discoverPages(len(recs))
	m.Page = clamp(opts.Page, 0, max(m.Pages-1, 0))

	top := window(recs, 0, TopPicks)
	next := window(recs, TopPicks, TopPicks+MightLike)
	start := TopPicks + MightLike + m.Page*DiscoverPage
	rest := window(recs, start, start+DiscoverPage)

	for _, s := range []struct {
		recs []model.Recommendation
		kind SectionKind
	}{
		{top, SectionAIRecommended},
		{next, SectionMightLike},
		{rest, SectionDiscover},
	} {
		if len(s.recs) == 0 {
			continue
		}
		sec := Section{Kind: s.kind, Title: s.kind.String()}
		for _, r := range s.recs {
			sec.Cards = append(sec.Cards, productCard(r, catalog, s.kind == SectionAIRecommended))
		}
		m.Sections = append(m.Sections, sec)
	}
	return m
}

func productCard(r model.Recommendation, catalog map[string]model.Product, ai bool) ProductCard {
	c := ProductCard{ID: r.ProductID, Name: r.ProductID, MatchScore: r.MatchScore}
	if p, ok := catalog[r.ProductID]; ok {
		c.Name = p.Name
		c.Brand = p.Brand
		c.Family = p.FragranceFamily
		c.Price = FormatIDR(p.PriceIDR)
		c.Badges = Badges(p)
	}
	if ai {
		c.Badges = append(c.Badges, BadgeAI)
	}
	return c
}

// Badges returns the catalog badges of p.
func Badges(p model.Product) []Badge {
	var out []Badge
	if p.Verified {
		out = append(out, BadgeVerified)
	}
	if p.HalalCertified {
		out = append(out, BadgeHalal)
	}
	return out
}

func identityBanner(id model.Identity) IdentityBanner {
	b := IdentityBanner{
		Connected: id.Connected(),
		Wallet:    id.ShortWallet(),
		DID:       id.DID,
		Tier:      string(id.Tier),
	}
	if b.Connected && b.Tier == "" {
		b.Tier = string(model.Unverified)
	}
	b.Verified = id.Tier.Rank() > 0
	return b
}

func consultationView(c session.Consultation) ConsultationView {
	v := ConsultationView{
		State:     string(c.State),
		NextStep:  c.NextStep,
		FollowUps: c.FollowUps,
		Progress:  ProgressView{Current: int(math.Round(c.Progress * 100)), Total: 100},
	}
	for i := len(c.Transcript) - 1; i >= 0; i-- {
		if c.Transcript[i].Role == session.RoleAgent {
			v.LastReply = c.Transcript[i].Content
			break
		}
	}
	return v
}

func cartSummary(lines []model.CartLine, total uint64) CartSummary {
	s := CartSummary{Lines: len(lines), Total: FormatIDR(total)}
	for _, l := range lines {
		s.Units += l.Quantity
		s.Items = append(s.Items, CartItem{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Quantity:  l.Quantity,
			Subtotal:  FormatIDR(l.Subtotal()),
		})
	}
	return s
}

func loadingOps(flags map[string]bool) []string {
	var out []string
	for op, on := range flags {
		if on {
			out = append(out, op)
		}
	}
	sort.Strings(out)
	return out
}

func discoverPages(n int) int {
	rest := n - TopPicks - MightLike
	if rest <= 0 {
		return 0
	}
	return (rest + DiscoverPage - 1) / DiscoverPage
}

func window(recs []model.Recommendation, from, to int) []model.Recommendation {
	if from >= len(recs) {
		return nil
	}
	return recs[from:min(to, len(recs))]
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
