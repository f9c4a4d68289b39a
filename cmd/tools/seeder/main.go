package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-lapak/internal/catalog"
	"github.com/noah-isme/backend-lapak/internal/coupon"
	"github.com/noah-isme/backend-lapak/internal/money"
	"github.com/noah-isme/backend-lapak/internal/offer"
	"github.com/noah-isme/backend-lapak/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := store.RunMigrations(dbURL); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	st := store.New(pool)

	seedCustomers(ctx, st)
	categories := seedCategories(ctx, st)
	products := seedProducts(ctx, st, categories)
	seedCoupons(ctx, st, products)
	seedOffers(ctx, st, products)

	log.Println("Seeding completed successfully!")
}

func seedCustomers(ctx context.Context, st *store.Store) {
	log.Println("Seeding Customers...")
	people := []struct {
		Name  string
		Email string
	}{
		{"Budi Santoso", "budi@example.com"},
		{"Siti Aminah", "siti@example.com"},
		{"Andi Pratama", "andi@example.com"},
		{"Dewi Lestari", "dewi@example.com"},
		{"Eko Kurniawan", "eko@example.com"},
	}
	vip, err := st.CreateCustomerGroup(ctx, "VIP")
	if err != nil {
		log.Printf("Failed to seed VIP group: %v", err)
	}
	for i, p := range people {
		id, err := st.CreateCustomer(ctx, p.Email, p.Name)
		if err != nil {
			log.Printf("Failed to seed customer %s: %v", p.Email, err)
			continue
		}
		if i < 2 && vip != uuid.Nil {
			if err := st.AddCustomerToGroup(ctx, id, vip); err != nil {
				log.Printf("Failed to add %s to VIP: %v", p.Email, err)
			}
		}
	}
}

func seedCategories(ctx context.Context, st *store.Store) map[string]uuid.UUID {
	log.Println("Seeding Categories...")
	names := []struct {
		Name string
		Slug string
	}{
		{"Electronics", "electronics"},
		{"Fashion", "fashion"},
		{"Home & Living", "home-living"},
		{"Beauty", "beauty"},
		{"Sports", "sports"},
	}
	out := make(map[string]uuid.UUID, len(names))
	for _, c := range names {
		created, err := st.CreateCategory(ctx, catalog.Category{Name: c.Name, Slug: c.Slug})
		if err != nil {
			log.Printf("Failed to seed category %s: %v", c.Name, err)
			continue
		}
		out[c.Slug] = created.ID
	}
	return out
}

func seedProducts(ctx context.Context, st *store.Store, categories map[string]uuid.UUID) []catalog.Product {
	log.Println("Seeding Products...")
	regular := func(v int64) *money.Money {
		m := money.FromInt(v)
		return &m
	}
	items := []catalog.Product{
		{
			Name:         "Wireless Earbuds",
			Slug:         "wireless-earbuds",
			Unit:         "pcs",
			SellingPrice: money.FromInt(299000),
			RegularPrice: regular(399000),
			TaxRate:      decimal.NewFromInt(11),
			InStock:      true,
			IsActive:     true,
			CategoryIDs:  []uuid.UUID{categories["electronics"]},
			Variants: []catalog.Variant{
				{Name: "Black", SellingPrice: money.FromInt(299000), Stock: 40},
				{Name: "White", SellingPrice: money.FromInt(309000), Stock: 25},
			},
		},
		{
			Name:         "Cotton T-Shirt",
			Slug:         "cotton-t-shirt",
			Unit:         "pcs",
			SellingPrice: money.FromInt(89000),
			TaxRate:      decimal.NewFromInt(11),
			InStock:      true,
			IsActive:     true,
			CategoryIDs:  []uuid.UUID{categories["fashion"]},
		},
		{
			Name:         "Ceramic Mug",
			Slug:         "ceramic-mug",
			Unit:         "pcs",
			SellingPrice: money.FromInt(45000),
			RegularPrice: regular(60000),
			TaxRate:      decimal.NewFromInt(11),
			InStock:      true,
			IsActive:     true,
			CategoryIDs:  []uuid.UUID{categories["home-living"]},
		},
		{
			Name:         "Yoga Mat",
			Slug:         "yoga-mat",
			Unit:         "pcs",
			SellingPrice: money.FromInt(150000),
			TaxRate:      decimal.NewFromInt(11),
			InStock:      true,
			IsActive:     true,
			CategoryIDs:  []uuid.UUID{categories["sports"]},
		},
	}
	out := make([]catalog.Product, 0, len(items))
	for _, p := range items {
		created, err := st.CreateProduct(ctx, p)
		if err != nil {
			log.Printf("Failed to seed product %s: %v", p.Slug, err)
			continue
		}
		out = append(out, created)
	}
	return out
}

func seedCoupons(ctx context.Context, st *store.Store, products []catalog.Product) {
	log.Println("Seeding Coupons...")
	ten := decimal.NewFromInt(10)
	rules := []coupon.Rule{
		{
			Code:           "welcome10",
			Type:           coupon.KindPercentage,
			Value:          ten,
			DiscountKind:   coupon.DiscountSimple,
			AppliesTo:      coupon.AppliesAll,
			MinRequirement: coupon.MinNone,
			Eligibility:    coupon.EligibleAll,
			IsActive:       true,
		},
		{
			Code:                "freeship",
			Type:                coupon.KindFreeShipping,
			DiscountKind:        coupon.DiscountSimple,
			AppliesTo:           coupon.AppliesAll,
			MinRequirement:      coupon.MinAmount,
			MinRequirementValue: decimal.NewFromInt(200000),
			Eligibility:         coupon.EligibleAll,
			IsActive:            true,
		},
		{
			Code:           "megasale",
			Type:           coupon.KindFixed,
			Value:          decimal.NewFromInt(50000),
			DiscountKind:   coupon.DiscountTiered,
			AppliesTo:      coupon.AppliesAll,
			MinRequirement: coupon.MinNone,
			Eligibility:    coupon.EligibleAll,
			IsActive:       true,
			IsAutomatic:    true,
			Tiers: []coupon.Tier{
				{Min: money.FromInt(500000), Type: coupon.KindFixed, Value: decimal.NewFromInt(50000)},
				{Min: money.FromInt(1000000), Type: coupon.KindPercentage, Value: ten},
			},
		},
	}
	if len(products) > 0 {
		rules = append(rules, coupon.Rule{
			Code:          "b2g1",
			Type:          coupon.KindPercentage,
			Value:         decimal.NewFromInt(100),
			DiscountKind:  coupon.DiscountBxgy,
			AppliesTo:     coupon.AppliesAll,
			Eligibility:   coupon.EligibleAll,
			IsActive:      true,
			BuyQuantity:   2,
			GetQuantity:   1,
			BuyProductIDs: []uuid.UUID{products[0].ID},
			GetProductIDs: []uuid.UUID{products[0].ID},
		})
	}
	for _, r := range rules {
		if _, err := st.CreateCoupon(ctx, r); err != nil {
			log.Printf("Failed to seed coupon %s: %v", r.Code, err)
		}
	}
}

func seedOffers(ctx context.Context, st *store.Store, products []catalog.Product) {
	if len(products) == 0 {
		return
	}
	log.Println("Seeding Offers...")
	minTotal := money.FromInt(100000)
	offers := []offer.CartOffer{
		{
			Title:       "Add a mug for less",
			Description: "Discounted ceramic mug with any order above the minimum",
			Placement:   offer.PlacementCart,
			Trigger:     offer.Trigger{Kind: offer.TriggerCartTotal, MinTotal: &minTotal},
			Priority:    10,
			IsActive:    true,
			Products: []offer.OfferProduct{
				{
					ProductID:    products[len(products)-1].ID,
					DiscountKind: offer.DiscountPercentage,
					Value:        decimal.NewFromInt(20),
					Base:         offer.BaseSellingPrice,
				},
			},
		},
		{
			Title:     "Earbuds checkout deal",
			Placement: offer.PlacementCheckout,
			Trigger:   offer.Trigger{Kind: offer.TriggerAllProducts},
			Priority:  5,
			IsActive:  true,
			Products: []offer.OfferProduct{
				{
					ProductID:    products[0].ID,
					DiscountKind: offer.DiscountFixed,
					Value:        decimal.NewFromInt(30000),
					Base:         offer.BaseRegularPrice,
				},
			},
		},
	}
	for _, o := range offers {
		if _, err := st.CreateOffer(ctx, o); err != nil {
			log.Printf("Failed to seed offer %s: %v", o.Title, err)
		}
	}
}
