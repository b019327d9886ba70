// Package catalog provides product fixtures for tests. It offers a fluent
// API for assembling a catalog and seeding it into any ledger.
//
// Example usage:
//
//	products := catalog.NewBuilder(t).
//		WithBasicCatalog().
//		WithProduct(catalog.OudMalam).
//		Build()
package catalog

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/Veraticus/aromance/internal/model"
)

// ProductID is a strongly-typed fixture product id.
type ProductID string

// String returns the string representation of the id.
func (p ProductID) String() string {
	return string(p)
}

// Fixture product ids.
const (
	OudMalam     ProductID = "prod_oud_malam"
	CitrusPagi   ProductID = "prod_citrus_pagi"
	MelatiSenja  ProductID = "prod_melati_senja"
	VanilaKopi   ProductID = "prod_vanila_kopi"
	HujanTropis  ProductID = "prod_hujan_tropis"
	AmberKeraton ProductID = "prod_amber_keraton"
	RempahNusa   ProductID = "prod_rempah_nusa"
	TehHijauPagi ProductID = "prod_teh_hijau_pagi"
	MawarSutra   ProductID = "prod_mawar_sutra"
	KayuCendana  ProductID = "prod_kayu_cendana"
	SegarLaut    ProductID = "prod_segar_laut"
	BungaKenanga ProductID = "prod_bunga_kenanga"
	MuskPutih    ProductID = "prod_musk_putih"
	JerukBali    ProductID = "prod_jeruk_bali"
)

// Seeder is anything that accepts catalog entries.
type Seeder interface {
	SaveProduct(ctx context.Context, p model.Product) error
}

// Products is an ordered collection of fixture products.
type Products []model.Product

// Find returns the product with the given id, or nil if not present.
func (p Products) Find(id ProductID) *model.Product {
	for i := range p {
		if p[i].ID == id.String() {
			return &p[i]
		}
	}
	return nil
}

// MustFind returns the product with the given id or fails the test.
func (p Products) MustFind(t *testing.T, id ProductID) model.Product {
	t.Helper()
	prod := p.Find(id)
	if prod == nil {
		t.Fatalf("product %q not found in fixture catalog", id)
	}
	return *prod
}

// IDs returns the product ids in order.
func (p Products) IDs() []string {
	ids := make([]string, len(p))
	for i, prod := range p {
		ids[i] = prod.ID
	}
	return ids
}

// Seed saves every product into s.
func (p Products) Seed(ctx context.Context, s Seeder) error {
	for _, prod := range p {
		if err := s.SaveProduct(ctx, prod); err != nil {
			return fmt.Errorf("failed to seed product %q: %w", prod.ID, err)
		}
	}
	return nil
}

// Builder assembles a fixture catalog.
type Builder interface {
	WithProduct(ids ...ProductID) Builder
	WithBasicCatalog() Builder
	WithFullCatalog() Builder
	WithCustom(p model.Product) Builder
	Build() Products
}

type builder struct {
	t        *testing.T
	selected map[ProductID]struct{}
	custom   []model.Product
}

// NewBuilder creates a catalog builder for the given test.
func NewBuilder(t *testing.T) Builder {
	t.Helper()
	return &builder{t: t, selected: make(map[ProductID]struct{})}
}

func (b *builder) WithProduct(ids ...ProductID) Builder {
	for _, id := range ids {
		if _, ok := fixtures[id]; !ok {
			b.t.Fatalf("unknown fixture product %q", id)
		}
		b.selected[id] = struct{}{}
	}
	return b
}

// WithBasicCatalog adds one product from each price tier.
func (b *builder) WithBasicCatalog() Builder {
	return b.WithProduct(CitrusPagi, MelatiSenja, OudMalam, AmberKeraton)
}

func (b *builder) WithFullCatalog() Builder {
	for id := range fixtures {
		b.selected[id] = struct{}{}
	}
	return b
}

func (b *builder) WithCustom(p model.Product) Builder {
	b.custom = append(b.custom, p)
	return b
}

// Build returns the selected fixtures sorted by id, followed by custom
// products in the order they were added.
func (b *builder) Build() Products {
	ids := make([]string, 0, len(b.selected))
	for id := range b.selected {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)

	out := make(Products, 0, len(ids)+len(b.custom))
	for _, id := range ids {
		out = append(out, fixtures[ProductID(id)])
	}
	return append(out, b.custom...)
}
