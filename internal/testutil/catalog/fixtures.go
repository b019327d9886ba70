package catalog

import (
	"time"

	"github.com/Veraticus/aromance/internal/model"
)

// fixtureTime is the creation time stamped on every fixture product.
var fixtureTime = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

type fixture struct {
	id          ProductID
	seller      string
	name        string
	brand       string
	family      string
	occasions   []string
	seasons     []string
	personality []string
	price       uint64
	stock       uint32
	halal       bool
	verified    bool
}

func (s fixture) product() model.Product {
	return model.Product{
		ID:                 s.id.String(),
		SellerID:           s.seller,
		Name:               s.name,
		Brand:              s.brand,
		Description:        s.name + " by " + s.brand,
		FragranceFamily:    s.family,
		Longevity:          "Moderate",
		Sillage:            "Moderate",
		Projection:         "Moderate",
		Occasions:          s.occasions,
		Seasons:            s.seasons,
		PersonalityMatches: s.personality,
		PriceIDR:           s.price,
		VersatilityScore:   0.7,
		Stock:              s.stock,
		HalalCertified:     s.halal,
		Verified:           s.verified,
		AIAnalyzed:         true,
		CreatedAt:          fixtureTime,
		UpdatedAt:          fixtureTime,
	}
}

var fixtures = func() map[ProductID]model.Product {
	rows := []fixture{
		{CitrusPagi, "seller_jkt", "Citrus Pagi", "Wangi Lokal", "Citrus", []string{"daily", "office"}, []string{"tropical_dry"}, []string{"fresh", "energetic"}, 85_000, 40, true, true},
		{JerukBali, "seller_jkt", "Jeruk Bali", "Wangi Lokal", "Citrus", []string{"daily", "sport"}, []string{"tropical_dry"}, []string{"energetic"}, 65_000, 25, true, false},
		{TehHijauPagi, "seller_bdg", "Teh Hijau Pagi", "Kebun Aroma", "Fresh", []string{"office"}, []string{"tropical_wet"}, []string{"calm", "fresh"}, 95_000, 30, true, true},
		{MelatiSenja, "seller_bdg", "Melati Senja", "Kebun Aroma", "Floral", []string{"date", "evening"}, []string{"tropical_wet"}, []string{"romantic"}, 250_000, 12, true, true},
		{MawarSutra, "seller_sby", "Mawar Sutra", "Rumah Parfum", "Floral", []string{"wedding", "date"}, []string{"tropical_dry"}, []string{"romantic", "elegant"}, 320_000, 8, false, true},
		{BungaKenanga, "seller_sby", "Bunga Kenanga", "Rumah Parfum", "Floral", []string{"formal"}, []string{"tropical_wet"}, []string{"elegant"}, 180_000, 0, true, false},
		{SegarLaut, "seller_bdg", "Segar Laut", "Kebun Aroma", "Aquatic", []string{"daily", "sport"}, []string{"tropical_dry"}, []string{"fresh", "adventurous"}, 150_000, 20, true, true},
		{VanilaKopi, "seller_jkt", "Vanila Kopi", "Wangi Lokal", "Gourmand", []string{"casual", "date"}, []string{"tropical_wet"}, []string{"playful"}, 420_000, 15, true, true},
		{MuskPutih, "seller_jkt", "Musk Putih", "Wangi Lokal", "Musky", []string{"daily", "office"}, []string{"tropical_dry", "tropical_wet"}, []string{"calm"}, 275_000, 18, true, true},
		{OudMalam, "seller_sby", "Oud Malam", "Rumah Parfum", "Woody", []string{"evening", "formal"}, []string{"tropical_wet"}, []string{"bold", "mysterious"}, 650_000, 5, true, true},
		{KayuCendana, "seller_sby", "Kayu Cendana", "Rumah Parfum", "Woody", []string{"formal", "office"}, []string{"tropical_dry"}, []string{"elegant", "calm"}, 780_000, 6, true, true},
		{RempahNusa, "seller_bdg", "Rempah Nusa", "Kebun Aroma", "Oriental", []string{"evening", "wedding"}, []string{"tropical_wet"}, []string{"bold", "adventurous"}, 560_000, 9, false, true},
		{AmberKeraton, "seller_sby", "Amber Keraton", "Rumah Parfum", "Oriental", []string{"wedding", "formal"}, []string{"tropical_dry"}, []string{"bold", "elegant"}, 1_250_000, 3, true, true},
		{HujanTropis, "seller_bdg", "Hujan Tropis", "Kebun Aroma", "Green", []string{"daily"}, []string{"tropical_wet"}, []string{"calm", "adventurous"}, 135_000, 22, true, false},
	}

	out := make(map[ProductID]model.Product, len(rows))
	for _, s := range rows {
		out[s.id] = s.product()
	}
	return out
}()
