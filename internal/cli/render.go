package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Veraticus/aromance/internal/model"
	"github.com/Veraticus/aromance/internal/view"
)

// RenderIdentity renders the signed-in header.
func RenderIdentity(b view.IdentityBanner) string {
	if !b.Connected {
		return SubtleStyle.Render(WalletIcon + " Not connected. Type 'connect' to link your wallet.")
	}
	line := WalletIcon + " " + BoldStyle.Render(b.Wallet)
	tier := SubtleStyle.Render(b.Tier)
	if b.Verified {
		tier = SuccessStyle.Render(SuccessIcon + " " + b.Tier)
	}
	line += "  " + tier
	if b.DID != "" {
		line += "  " + SubtleStyle.Render(b.DID)
	}
	return line
}

// RenderConsultation renders the consultation panel.
func RenderConsultation(c view.ConsultationView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s  %d%% %s\n", RobotIcon, c.State, c.Progress.Current, SubtleStyle.Render(c.Progress.Bar(20)))
	if c.LastReply != "" {
		b.WriteString(c.LastReply + "\n")
	}
	for _, q := range c.FollowUps {
		b.WriteString(SubtleStyle.Render("  • "+q) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// WriteSections writes every product section as a table.
func WriteSections(w io.Writer, m view.Model) error {
	if m.IsEmpty() {
		_, err := fmt.Fprintln(w, SubtleStyle.Render("No recommendations yet. Finish the consultation with 'consult'."))
		return err
	}
	for _, s := range m.Sections {
		title := s.Title
		if s.Kind == view.SectionDiscover && m.Pages > 1 {
			title = fmt.Sprintf("%s (page %d of %d)", title, m.Page+1, m.Pages)
		}
		if _, err := fmt.Fprintln(w, FormatTitle(title)); err != nil {
			return err
		}
		if err := writeCards(w, s.Cards); err != nil {
			return err
		}
	}
	return nil
}

func writeCards(w io.Writer, cards []view.ProductCard) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
		TableHeaderStyle.Render("ID"),
		TableHeaderStyle.Render("Name"),
		TableHeaderStyle.Render("Family"),
		TableHeaderStyle.Render("Price"),
		TableHeaderStyle.Render("Match"),
		TableHeaderStyle.Render("Badges"))
	for _, c := range cards {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.0f%%\t%s\n",
			c.ID,
			TruncateName(c.Name),
			c.Family,
			c.Price,
			c.MatchScore*100,
			renderBadges(c.Badges))
	}
	return tw.Flush()
}

// TruncateName shortens product names for table cells.
func TruncateName(name string) string {
	return view.TruncateString(name, 28)
}

func renderBadges(badges []view.Badge) string {
	parts := make([]string, len(badges))
	for i, b := range badges {
		parts[i] = string(b)
	}
	return BadgeStyle.Render(strings.Join(parts, " · "))
}

// RenderCart renders the cart panel.
func RenderCart(c view.CartSummary) string {
	if c.Lines == 0 {
		return SubtleStyle.Render(CartIcon + " Your cart is empty")
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, item := range c.Items {
		fmt.Fprintf(tw, "%s\t%s\tx%d\t%s\n", item.ProductID, TruncateName(item.Name), item.Quantity, item.Subtotal)
	}
	_ = tw.Flush()
	fmt.Fprintf(&b, "%d item(s), total %s", c.Units, BoldStyle.Render(c.Total))
	return RenderBox(CartIcon+" Cart", b.String())
}

// WriteProducts writes a plain product listing.
func WriteProducts(w io.Writer, products []model.Product) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
		TableHeaderStyle.Render("ID"),
		TableHeaderStyle.Render("Name"),
		TableHeaderStyle.Render("Brand"),
		TableHeaderStyle.Render("Family"),
		TableHeaderStyle.Render("Price"),
		TableHeaderStyle.Render("Badges"))
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID,
			TruncateName(p.Name),
			p.Brand,
			p.FragranceFamily,
			view.FormatIDR(p.PriceIDR),
			renderBadges(view.Badges(p)))
	}
	return tw.Flush()
}

// WriteTransactions writes the order history.
func WriteTransactions(w io.Writer, txs []model.Transaction) error {
	if len(txs) == 0 {
		_, err := fmt.Fprintln(w, SubtleStyle.Render("No orders yet"))
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
		TableHeaderStyle.Render("Order"),
		TableHeaderStyle.Render("Product"),
		TableHeaderStyle.Render("Qty"),
		TableHeaderStyle.Render("Total"),
		TableHeaderStyle.Render("Status"))
	for _, tx := range txs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			tx.ID, tx.ProductID, tx.Quantity, view.FormatIDR(tx.TotalAmount), tx.Status)
	}
	return tw.Flush()
}

// WriteStats writes platform statistics sorted by key.
func WriteStats(w io.Writer, stats model.PlatformStats) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, k := range stats.Keys() {
		fmt.Fprintf(tw, "%s\t%d\n", k, stats[k])
	}
	return tw.Flush()
}

// WriteReviews writes product reviews in the order given.
func WriteReviews(w io.Writer, reviews []model.Review) error {
	if len(reviews) == 0 {
		_, err := fmt.Fprintln(w, SubtleStyle.Render("No reviews yet"))
		return err
	}
	for _, r := range reviews {
		overall := min(int(r.Ratings.Overall), 5)
		stars := strings.Repeat("★", overall) + strings.Repeat("☆", 5-overall)
		reviewer := "Unstaked reviewer"
		if r.ReviewerTier != nil {
			reviewer = r.ReviewerTier.DisplayName()
		}
		if _, err := fmt.Fprintf(w, "%s  %s\n  %s\n", WarningStyle.Render(stars), SubtleStyle.Render(reviewer), r.Text); err != nil {
			return err
		}
	}
	return nil
}

// WriteStakeTiers writes the stake offering table.
func WriteStakeTiers(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\n",
		TableHeaderStyle.Render("Tier"),
		TableHeaderStyle.Render("Stake"),
		TableHeaderStyle.Render("Annual return"))
	for _, o := range model.StakeTiers {
		fmt.Fprintf(tw, "%s\t%s\t%.1f%%\n", o.Tier.DisplayName(), view.FormatIDR(o.Amount), o.AnnualReturnRate)
	}
	return tw.Flush()
}
