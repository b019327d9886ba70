package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/aromance/internal/model"
)

// LoadCatalog reads the full product catalog into the cache.
func (o *Orchestrator) LoadCatalog(ctx context.Context) (err error) {
	const op = "load_catalog"
	defer func() { err = o.finish(op, err) }()

	release, err := o.store.Begin(keyCatalog)
	if err != nil {
		return err
	}
	defer release()
	return o.loadProducts(ctx)
}

// Search lists products matching filter. Results are returned, not
// cached, so the catalog used for cart pricing is left alone. A filter
// that asks only for halal products uses the dedicated halal listing.
func (o *Orchestrator) Search(ctx context.Context, filter model.ProductFilter) (products []model.Product, err error) {
	defer func() { err = o.finish("search", err) }()

	if filter == (model.ProductFilter{HalalOnly: true}) {
		return o.gateway.HalalProducts(ctx)
	}
	return o.gateway.SearchProducts(ctx, filter)
}

// SearchByPersonality lists products whose personality matches contain
// text, such as "bold" or "romantic". Results are not cached.
func (o *Orchestrator) SearchByPersonality(ctx context.Context, text string) (products []model.Product, err error) {
	defer func() { err = o.finish("search", err) }()
	return o.gateway.SearchByPersonality(ctx, text)
}

// RefreshDashboard reloads the catalog, the user's orders, and platform
// statistics concurrently. Orders are skipped when no wallet is
// connected. The first failure cancels the other reads.
func (o *Orchestrator) RefreshDashboard(ctx context.Context) (stats model.PlatformStats, err error) {
	const op = "dashboard"
	defer func() { err = o.finish(op, err) }()

	release, err := o.store.Begin(keyDashboard)
	if err != nil {
		return nil, err
	}
	defer release()

	id := o.store.Identity()
	gen := o.store.Generation()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return o.loadProducts(gctx)
	})
	if id.Connected() {
		g.Go(func() error {
			return o.loadTransactions(gctx, gen, id.WalletAddress)
		})
	}
	g.Go(func() error {
		s, err := o.gateway.PlatformStats(gctx)
		if err != nil {
			return err
		}
		stats = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

func (o *Orchestrator) loadProducts(ctx context.Context) error {
	o.store.SetLoading("products", true)
	defer o.store.SetLoading("products", false)

	products, err := o.gateway.Products(ctx)
	if err != nil {
		return err
	}
	o.store.SetProducts(products)
	return nil
}
