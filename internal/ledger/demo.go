package ledger

import (
	"strings"
	"time"

	"github.com/Veraticus/aromance/internal/model"
)

// demoListed is the listing date stamped on every demo product.
var demoListed = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

type demoEntry struct {
	id, seller, name, brand, family string
	notes                           [3]string // top, middle, base; comma separated
	occasions, seasons, personality string
	price                           uint64
	stock                           uint32
	halal, verified                 bool
}

var demoEntries = []demoEntry{
	{"prod_citrus_pagi", "seller_jkt", "Citrus Pagi", "Wangi Lokal", "Citrus", [3]string{"bergamot,lime", "neroli", "white musk"}, "daily,office", "tropical_dry", "fresh,energetic", 85_000, 40, true, true},
	{"prod_jeruk_bali", "seller_jkt", "Jeruk Bali", "Wangi Lokal", "Citrus", [3]string{"pomelo", "petitgrain", "vetiver"}, "daily,sport", "tropical_dry", "energetic", 65_000, 25, true, false},
	{"prod_teh_hijau", "seller_bdg", "Teh Hijau Pagi", "Kebun Aroma", "Fresh", [3]string{"green tea", "jasmine tea", "cedar"}, "office", "tropical_wet", "calm,fresh", 95_000, 30, true, true},
	{"prod_melati_senja", "seller_bdg", "Melati Senja", "Kebun Aroma", "Floral", [3]string{"pear", "jasmine sambac", "sandalwood"}, "date,evening", "tropical_wet", "romantic", 250_000, 12, true, true},
	{"prod_mawar_sutra", "seller_sby", "Mawar Sutra", "Rumah Parfum", "Floral", [3]string{"pink pepper", "damask rose", "patchouli"}, "wedding,date", "tropical_dry", "romantic,elegant", 320_000, 8, false, true},
	{"prod_kenanga", "seller_sby", "Bunga Kenanga", "Rumah Parfum", "Floral", [3]string{"ylang ylang", "cananga", "benzoin"}, "formal", "tropical_wet", "elegant", 180_000, 14, true, false},
	{"prod_segar_laut", "seller_bdg", "Segar Laut", "Kebun Aroma", "Aquatic", [3]string{"sea salt", "calone", "ambrette"}, "daily,sport", "tropical_dry", "fresh,adventurous", 150_000, 20, true, true},
	{"prod_vanila_kopi", "seller_jkt", "Vanila Kopi", "Wangi Lokal", "Gourmand", [3]string{"coffee", "vanilla", "tonka"}, "casual,date", "tropical_wet", "playful", 420_000, 15, true, true},
	{"prod_musk_putih", "seller_jkt", "Musk Putih", "Wangi Lokal", "Musky", [3]string{"aldehydes", "iris", "white musk"}, "daily,office", "tropical_dry,tropical_wet", "calm", 275_000, 18, true, true},
	{"prod_oud_malam", "seller_sby", "Oud Malam", "Rumah Parfum", "Woody", [3]string{"saffron", "oud", "leather"}, "evening,formal", "tropical_wet", "bold,mysterious", 650_000, 5, true, true},
	{"prod_kayu_cendana", "seller_sby", "Kayu Cendana", "Rumah Parfum", "Woody", [3]string{"cardamom", "sandalwood", "cedar"}, "formal,office", "tropical_dry", "elegant,calm", 780_000, 6, true, true},
	{"prod_rempah_nusa", "seller_bdg", "Rempah Nusa", "Kebun Aroma", "Oriental", [3]string{"clove", "nutmeg", "amber"}, "evening,wedding", "tropical_wet", "bold,adventurous", 560_000, 9, false, true},
	{"prod_amber_keraton", "seller_sby", "Amber Keraton", "Rumah Parfum", "Oriental", [3]string{"cinnamon", "labdanum", "amber"}, "wedding,formal", "tropical_dry", "bold,elegant", 1_250_000, 3, true, true},
	{"prod_hujan_tropis", "seller_bdg", "Hujan Tropis", "Kebun Aroma", "Green", [3]string{"galbanum", "petrichor", "oakmoss"}, "daily", "tropical_wet", "calm,adventurous", 135_000, 22, true, false},
	{"prod_pandan_wangi", "seller_jkt", "Pandan Wangi", "Wangi Lokal", "Green", [3]string{"pandan", "coconut water", "musk"}, "casual,daily", "tropical_wet", "playful,calm", 110_000, 26, true, true},
	{"prod_kemangi", "seller_bdg", "Kemangi Segar", "Kebun Aroma", "Fresh", [3]string{"basil", "lemongrass", "vetiver"}, "sport,casual", "tropical_dry", "energetic,fresh", 120_000, 19, true, true},
	{"prod_tuberose", "seller_sby", "Sedap Malam", "Rumah Parfum", "Floral", [3]string{"green notes", "tuberose", "vanilla"}, "evening,wedding", "tropical_wet", "romantic,mysterious", 540_000, 7, true, true},
	{"prod_gula_aren", "seller_jkt", "Gula Aren", "Wangi Lokal", "Gourmand", [3]string{"caramel", "palm sugar", "benzoin"}, "casual", "tropical_wet", "playful,romantic", 230_000, 16, true, true},
	{"prod_dupa_candi", "seller_bdg", "Dupa Candi", "Kebun Aroma", "Woody", [3]string{"elemi", "frankincense", "guaiac wood"}, "formal,evening", "tropical_dry", "mysterious,calm", 890_000, 4, true, true},
	{"prod_ombak_biru", "seller_sby", "Ombak Biru", "Rumah Parfum", "Aquatic", [3]string{"grapefruit", "marine accord", "driftwood"}, "sport,daily", "tropical_dry", "adventurous,energetic", 210_000, 21, false, true},
	{"prod_kopi_tubruk", "seller_jkt", "Kopi Tubruk", "Wangi Lokal", "Gourmand", [3]string{"espresso", "cocoa", "tobacco"}, "evening,casual", "tropical_wet", "bold,playful", 360_000, 11, true, true},
	{"prod_cengkeh", "seller_bdg", "Cengkeh Emas", "Kebun Aroma", "Oriental", [3]string{"clove", "rose", "oud"}, "wedding,formal", "tropical_wet", "elegant,mysterious", 1_050_000, 2, true, true},
}

// DemoCatalog returns the catalog the development ledger starts with.
func DemoCatalog() []model.Product {
	out := make([]model.Product, len(demoEntries))
	for i, e := range demoEntries {
		out[i] = model.Product{
			ID:                 e.id,
			SellerID:           e.seller,
			Name:               e.name,
			Brand:              e.brand,
			Description:        e.name + " by " + e.brand,
			FragranceFamily:    e.family,
			Longevity:          "Moderate",
			Sillage:            "Moderate",
			Projection:         "Moderate",
			TopNotes:           splitList(e.notes[0]),
			MiddleNotes:        splitList(e.notes[1]),
			BaseNotes:          splitList(e.notes[2]),
			Occasions:          splitList(e.occasions),
			Seasons:            splitList(e.seasons),
			PersonalityMatches: splitList(e.personality),
			PriceIDR:           e.price,
			VersatilityScore:   0.7,
			Stock:              e.stock,
			HalalCertified:     e.halal,
			Verified:           e.verified,
			AIAnalyzed:         true,
			CreatedAt:          demoListed,
			UpdatedAt:          demoListed,
		}
	}
	return out
}

// NewDemoMemory returns an in-memory ledger stocked with DemoCatalog.
func NewDemoMemory() *Memory {
	m := NewMemory()
	for _, p := range DemoCatalog() {
		m.AddProduct(p)
	}
	return m
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
