package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/aromance/internal/cli"
	"github.com/Veraticus/aromance/internal/common"
	"github.com/Veraticus/aromance/internal/engine"
	"github.com/Veraticus/aromance/internal/model"
	"github.com/Veraticus/aromance/internal/session"
	"github.com/Veraticus/aromance/internal/view"
)

func shellCmd() *cobra.Command {
	var dev bool
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive shopping session",
		Long: `Start an interactive session. Type 'help' for the list of commands.

With --dev the shell runs against an in-memory ledger stocked with a demo
catalog, a mock wallet, and an offline consultation, so no external
services are needed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			rt, err := newRuntime(cmd.Context(), runtimeOptions{
				dev:      dev,
				journal:  !dev,
				notifier: cli.NewToaster(out),
			})
			if err != nil {
				return err
			}
			defer func() {
				if err := rt.Close(); err != nil {
					slog.Warn("Failed to shut down cleanly", "error", err)
				}
			}()
			rt.serveMetrics()

			handler := cli.NewInterruptHandler(out)
			ctx := handler.HandleInterrupts(cmd.Context(), "Stake payments awaiting verification are kept; run 'aromance verify retry' to settle them")

			sh := newShell(rt.orchestrator, cmd.InOrStdin(), out)
			defer sh.Close()
			err = sh.Run(ctx)
			if handler.WasInterrupted() {
				return errInterrupted
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&dev, "dev", false, "use the in-memory ledger, mock wallet, and offline agents")
	return cmd
}

// notifiedError marks an error the toaster has already shown.
type notifiedError struct{ err error }

func (e notifiedError) Error() string { return e.err.Error() }
func (e notifiedError) Unwrap() error { return e.err }

func notified(err error) error {
	if err == nil {
		return nil
	}
	return notifiedError{err: err}
}

// errQuit ends the read loop.
var errQuit = errors.New("quit")

type command struct {
	run   func(ctx context.Context, args []string) error
	usage string
	help  string
}

type shell struct {
	o           *engine.Orchestrator
	store       *session.Store
	reader      *cli.LineReader
	out         io.Writer
	progress    *cli.ConsultationProgress
	commands    map[string]command
	unsubscribe func()
	page        int
}

func newShell(o *engine.Orchestrator, in io.Reader, out io.Writer) *shell {
	s := &shell{
		o:      o,
		store:  o.Store(),
		reader: cli.NewLineReader(in),
		out:    out,
	}
	s.commands = map[string]command{
		"connect":      {s.connect, "connect", "Connect your wallet and load your profile"},
		"disconnect":   {s.disconnect, "disconnect", "Sign out and clear the session"},
		"status":       {s.status, "status", "Show wallet, consultation, and cart"},
		"consult":      {s.consult, "consult", "Start or resume the scent consultation"},
		"say":          {s.say, "say <text>", "Answer the consultant"},
		"recs":         {s.recs, "recs [page]", "Show your recommendations"},
		"refresh":      {s.refresh, "refresh", "Regenerate your recommendations"},
		"products":     {s.products, "products", "List the catalog"},
		"search":       {s.search, "search <text> | [family=] [occasion=] [season=] [min=] [max=] [halal] [verified]", "Search the catalog by personality or filters"},
		"add":          {s.add, "add <product> [qty]", "Add a product to the cart"},
		"qty":          {s.qty, "qty <product> <n>", "Change a cart quantity (0 removes)"},
		"rm":           {s.rm, "rm <product>", "Remove a product from the cart"},
		"cart":         {s.cart, "cart", "Show the cart"},
		"checkout":     {s.checkout, "checkout", "Buy everything in the cart"},
		"orders":       {s.orders, "orders", "Show your orders"},
		"tiers":        {s.tiers, "tiers", "List stake tiers"},
		"stake":        {s.stake, "stake <tier name>", "Pay a stake and get verified"},
		"verify-retry": {s.verifyRetry, "verify-retry", "Settle stake payments awaiting verification"},
		"resolve":      {s.resolve, "resolve <ref> <receipt|void>", "Close a stake payment the wallet never confirmed"},
		"claim":        {s.claim, "claim", "Process stake rewards"},
		"review":       {s.review, "review <product> <rating 1-5> <text>", "Review a product you bought"},
		"reviews":      {s.reviews, "reviews <product>", "Show reviews of a product"},
		"stats":        {s.stats, "stats", "Show marketplace statistics"},
		"help":         {s.help, "help", "Show this help"},
		"quit":         {func(context.Context, []string) error { return errQuit }, "quit", "Leave the shell"},
	}
	s.unsubscribe = s.store.Subscribe(s.onChange)
	return s
}

// Close detaches the shell from the store.
func (s *shell) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Run reads and executes commands until quit, end of input, or
// cancellation.
func (s *shell) Run(ctx context.Context) error {
	s.println(cli.FormatTitle("Aromance"))
	s.println(cli.RenderIdentity(view.Project(s.store.Snapshot(), view.Options{}).Identity))
	s.println(cli.SubtleStyle.Render("Type 'help' for commands."))

	for {
		s.print(cli.FormatPrompt("aromance"))
		line, err := s.reader.ReadLine(ctx)
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, cli.ErrInputCancelled):
			return nil
		case err != nil:
			return fmt.Errorf("failed to read input: %w", err)
		}

		if err := s.Exec(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			var shown notifiedError
			if errors.As(err, &shown) {
				slog.Debug("Command failed", "line", line, "error", err)
				continue
			}
			s.println(cli.FormatError(common.MessageOf(err)))
		}
	}
}

// Exec runs one command line.
func (s *shell) Exec(ctx context.Context, line string) error {
	fields := cli.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name := strings.ToLower(fields[0])
	if name == "exit" {
		name = "quit"
	}
	c, ok := s.commands[name]
	if !ok {
		return common.Validation("shell", fmt.Sprintf("Unknown command %q. Type 'help' for commands.", fields[0]))
	}
	return c.run(ctx, fields[1:])
}

func (s *shell) onChange(c session.Change) {
	if c != session.ChangeConsultation || s.progress == nil {
		return
	}
	s.progress.Update(s.store.Consultation().Progress)
}

func (s *shell) usage(name string) error {
	return common.Validation("shell", "Usage: "+s.commands[name].usage)
}

func (s *shell) print(a ...any) {
	if _, err := fmt.Fprint(s.out, a...); err != nil {
		slog.Warn("Failed to write output", "error", err)
	}
}

func (s *shell) println(a ...any) {
	if _, err := fmt.Fprintln(s.out, a...); err != nil {
		slog.Warn("Failed to write output", "error", err)
	}
}

func (s *shell) model() view.Model {
	return view.Project(s.store.Snapshot(), view.Options{Page: s.page})
}

func (s *shell) connect(ctx context.Context, _ []string) error {
	if err := s.o.Onboard(ctx); err != nil {
		return notified(err)
	}
	if err := s.o.LoadCatalog(ctx); err != nil {
		return notified(err)
	}
	s.println(cli.RenderIdentity(s.model().Identity))
	if s.store.Consultation().State != session.ConsultationCompleted {
		s.println(cli.FormatInfo("Type 'consult' to find your signature scent."))
	}
	return nil
}

func (s *shell) disconnect(context.Context, []string) error {
	s.o.Disconnect()
	s.progress = nil
	s.page = 0
	s.println(cli.FormatInfo("Disconnected"))
	return nil
}

func (s *shell) status(context.Context, []string) error {
	m := s.model()
	s.println(cli.RenderIdentity(m.Identity))
	if m.Identity.Connected {
		s.println(cli.RenderConsultation(m.Consultation))
	}
	s.println(cli.RenderCart(m.Cart))
	if len(m.Loading) > 0 {
		s.println(cli.SubtleStyle.Render("Loading: " + strings.Join(m.Loading, ", ")))
	}
	return nil
}

func (s *shell) consult(ctx context.Context, _ []string) error {
	switch s.store.Consultation().State {
	case session.ConsultationCompleted:
		s.println(cli.FormatInfo("Your consultation is complete. Type 'recs' to see your matches."))
		return nil
	case session.ConsultationNotStarted:
		s.progress = cli.NewConsultationProgress(s.out)
		if err := s.o.StartConsultation(ctx); err != nil {
			return notified(err)
		}
	default:
		if s.progress == nil {
			s.progress = cli.NewConsultationProgress(s.out)
		}
	}
	s.println(cli.RenderConsultation(s.model().Consultation))
	return nil
}

func (s *shell) say(ctx context.Context, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return s.usage("say")
	}
	if err := s.o.SendMessage(ctx, text); err != nil {
		return notified(err)
	}
	m := s.model()
	if m.Consultation.State == string(session.ConsultationCompleted) {
		return cli.WriteSections(s.out, m)
	}
	s.println(cli.RenderConsultation(m.Consultation))
	return nil
}

func (s *shell) recs(_ context.Context, args []string) error {
	if len(args) > 0 {
		page, err := strconv.Atoi(args[0])
		if err != nil || page < 1 {
			return s.usage("recs")
		}
		s.page = page - 1
	}
	m := s.model()
	s.page = m.Page
	return cli.WriteSections(s.out, m)
}

func (s *shell) refresh(ctx context.Context, _ []string) error {
	if err := s.o.RefreshRecommendations(ctx); err != nil {
		return notified(err)
	}
	s.page = 0
	return cli.WriteSections(s.out, s.model())
}

func (s *shell) products(ctx context.Context, _ []string) error {
	if err := s.o.LoadCatalog(ctx); err != nil {
		return notified(err)
	}
	return cli.WriteProducts(s.out, s.store.Products())
}

func (s *shell) search(ctx context.Context, args []string) error {
	var products []model.Product
	if text, ok := freeText(args); ok {
		found, err := s.o.SearchByPersonality(ctx, text)
		if err != nil {
			return notified(err)
		}
		products = found
	} else {
		filter, err := parseFilter(args)
		if err != nil {
			return err
		}
		if products, err = s.o.Search(ctx, filter); err != nil {
			return notified(err)
		}
	}
	if len(products) == 0 {
		s.println(cli.FormatInfo("No products match"))
		return nil
	}
	return cli.WriteProducts(s.out, products)
}

// freeText joins args into a personality query when none of them is a
// filter term.
func freeText(args []string) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	for _, arg := range args {
		switch strings.ToLower(arg) {
		case "halal", "verified":
			return "", false
		}
		if strings.Contains(arg, "=") {
			return "", false
		}
	}
	return strings.Join(args, " "), true
}

// parseFilter reads key=value search terms. Bare "halal" and "verified"
// are flags.
func parseFilter(args []string) (model.ProductFilter, error) {
	var f model.ProductFilter
	for _, arg := range args {
		key, value, _ := strings.Cut(strings.ToLower(arg), "=")
		switch key {
		case "halal":
			f.HalalOnly = true
		case "verified":
			f.VerifiedOnly = true
		case "family":
			f.Family = value
		case "occasion":
			f.Occasion = value
		case "season":
			f.Season = value
		case "min", "max":
			n, err := parseAmount(value)
			if err != nil {
				return f, common.Validation("search", fmt.Sprintf("%s must be an amount in IDR, got %q", key, value))
			}
			if key == "min" {
				f.MinPrice = n
			} else {
				f.MaxPrice = n
			}
		default:
			return f, common.Validation("search", fmt.Sprintf("Unknown search term %q", arg))
		}
	}
	return f, nil
}

// parseAmount accepts plain digits with optional "." or "_" grouping,
// e.g. 500000, 500.000, or 500_000.
func parseAmount(s string) (uint64, error) {
	return strconv.ParseUint(strings.NewReplacer(".", "", "_", "").Replace(s), 10, 64)
}

func (s *shell) lookup(ctx context.Context, id string) (model.Product, error) {
	if p, ok := s.store.Product(id); ok {
		return p, nil
	}
	if err := s.o.LoadCatalog(ctx); err != nil {
		return model.Product{}, notified(err)
	}
	if p, ok := s.store.Product(id); ok {
		return p, nil
	}
	return model.Product{}, common.Validation("cart", fmt.Sprintf("No product with id %q", id))
}

func (s *shell) add(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return s.usage("add")
	}
	qty := 1
	if len(args) == 2 {
		n, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return s.usage("add")
		}
		if qty, err = boundQuantity(n); err != nil {
			return err
		}
	}
	p, err := s.lookup(ctx, args[0])
	if err != nil {
		return err
	}
	if err := s.store.AddToCart(p, qty); err != nil {
		return err
	}
	s.println(cli.FormatSuccess(fmt.Sprintf("Added %s. Cart total %s", p.Name, view.FormatIDR(s.store.CartTotal()))))
	return nil
}

func (s *shell) qty(_ context.Context, args []string) error {
	if len(args) != 2 {
		return s.usage("qty")
	}
	n, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return s.usage("qty")
	}
	qty, err := boundQuantity(n)
	if err != nil {
		return err
	}
	if err := s.store.SetQuantity(args[0], qty); err != nil {
		return err
	}
	s.println(cli.RenderCart(s.model().Cart))
	return nil
}

func boundQuantity(n int64) (int, error) {
	if n > model.MaxQuantity || n < -model.MaxQuantity {
		return 0, common.Validation("cart", fmt.Sprintf("quantity must be between 1 and %d", uint64(model.MaxQuantity)))
	}
	return int(n), nil
}

func (s *shell) rm(_ context.Context, args []string) error {
	if len(args) != 1 {
		return s.usage("rm")
	}
	s.store.RemoveFromCart(args[0])
	s.println(cli.RenderCart(s.model().Cart))
	return nil
}

func (s *shell) cart(context.Context, []string) error {
	s.println(cli.RenderCart(s.model().Cart))
	return nil
}

func (s *shell) checkout(ctx context.Context, _ []string) error {
	result, err := s.o.Checkout(ctx)
	for _, tx := range result.Submitted {
		s.println(cli.SubtleStyle.Render(fmt.Sprintf("  %s  %s x%d  %s  %s", tx.ID, tx.ProductID, tx.Quantity, view.FormatIDR(tx.TotalAmount), tx.Status)))
	}
	if len(result.Remaining) > 0 {
		s.println(cli.RenderCart(s.model().Cart))
	}
	return notified(err)
}

func (s *shell) orders(ctx context.Context, _ []string) error {
	if _, err := s.o.RefreshDashboard(ctx); err != nil {
		return notified(err)
	}
	return cli.WriteTransactions(s.out, s.store.Transactions())
}

func (s *shell) tiers(context.Context, []string) error {
	return cli.WriteStakeTiers(s.out)
}

func (s *shell) stake(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return s.usage("stake")
	}
	return notified(s.o.SubscribeToTier(ctx, strings.Join(args, " ")))
}

func (s *shell) verifyRetry(ctx context.Context, _ []string) error {
	_, err := s.o.RetryVerification(ctx)
	return notified(err)
}

func (s *shell) resolve(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return s.usage("resolve")
	}
	receipt := args[1]
	if strings.EqualFold(receipt, "void") {
		receipt = ""
	}
	return notified(s.o.ResolvePayment(ctx, args[0], receipt))
}

func (s *shell) claim(ctx context.Context, _ []string) error {
	return notified(s.o.ClaimRewards(ctx))
}

func (s *shell) review(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return s.usage("review")
	}
	rating, err := strconv.Atoi(args[1])
	if err != nil || rating < 1 || rating > 5 {
		return common.Validation("review", "Rating must be a whole number from 1 to 5")
	}
	_, err = s.o.SubmitReview(ctx, engine.ReviewDraft{
		ProductID: args[0],
		Text:      strings.Join(args[2:], " "),
		Ratings:   model.UniformRatings(uint8(rating)),
	})
	return notified(err)
}

func (s *shell) reviews(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return s.usage("reviews")
	}
	reviews, err := s.o.LoadReviews(ctx, args[0])
	if err != nil {
		return notified(err)
	}
	return cli.WriteReviews(s.out, reviews)
}

func (s *shell) stats(ctx context.Context, _ []string) error {
	stats, err := s.o.RefreshDashboard(ctx)
	if err != nil {
		return notified(err)
	}
	return cli.WriteStats(s.out, stats)
}

func (s *shell) help(context.Context, []string) error {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := s.commands[name]
		s.println(fmt.Sprintf("  %-44s %s", c.usage, cli.SubtleStyle.Render(c.help)))
	}
	return nil
}
