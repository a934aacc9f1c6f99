// Seeds the catalog with the launch categories and a handful of demo
// products. Safe to run repeatedly: rows are upserted by slug.
package main

import (
	"context"
	"log"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tunisianchic/backend-boutique/internal/config"
)

type category struct {
	name string
	slug string
}

type product struct {
	name         string
	slug         string
	description  string
	shortDesc    string
	price        string
	salePrice    string
	sku          string
	stock        int32
	categorySlug string
	images       []string
	sizes        []string
	colors       []string
	tags         []string
	featured     bool
}

var launchCategories = []category{
	{"Robes", "robes"},
	{"Chemises", "chemises"},
	{"Jupes", "jupes"},
	{"Combinaisons", "combinaisons"},
	{"Manteaux & Trenchs", "manteaux-trenchs"},
	{"Shorts", "shorts"},
}

var demoProducts = []product{
	{
		name:         "Robe Élégante",
		slug:         "robe-elegante",
		description:  "Cette robe élégante offre une coupe flatteuse et un tissu de qualité supérieure.",
		shortDesc:    "Une robe idéale pour les occasions spéciales.",
		price:        "89.99",
		salePrice:    "79.99",
		sku:          "ROBE-001",
		stock:        15,
		categorySlug: "robes",
		images:       []string{"https://via.placeholder.com/300"},
		sizes:        []string{"S", "M", "L"},
		colors:       []string{"Rouge", "Noir"},
		tags:         []string{"soirée", "élégant"},
		featured:     true,
	},
	{
		name:         "Chemise en Lin",
		slug:         "chemise-en-lin",
		description:  "Chemise légère en lin naturel, parfaite pour les journées chaudes.",
		shortDesc:    "Lin naturel, coupe décontractée.",
		price:        "59.00",
		sku:          "CHEM-001",
		stock:        30,
		categorySlug: "chemises",
		images:       []string{"https://via.placeholder.com/300"},
		sizes:        []string{"S", "M", "L", "XL"},
		colors:       []string{"Blanc", "Beige"},
		tags:         []string{"été", "lin"},
	},
	{
		name:         "Jupe Midi Plissée",
		slug:         "jupe-midi-plissee",
		description:  "Jupe midi plissée au tombé fluide, taille élastiquée.",
		shortDesc:    "Plissée, longueur midi.",
		price:        "69.50",
		sku:          "JUPE-001",
		stock:        20,
		categorySlug: "jupes",
		images:       []string{"https://via.placeholder.com/300"},
		sizes:        []string{"S", "M", "L"},
		colors:       []string{"Noir", "Camel"},
		tags:         []string{"bureau", "plissé"},
	},
	{
		name:         "Trench Classique",
		slug:         "trench-classique",
		description:  "Trench intemporel à double boutonnage et ceinture assortie.",
		shortDesc:    "Le classique de mi-saison.",
		price:        "189.00",
		salePrice:    "159.00",
		sku:          "TREN-001",
		stock:        8,
		categorySlug: "manteaux-trenchs",
		images:       []string{"https://via.placeholder.com/300"},
		sizes:        []string{"S", "M", "L"},
		colors:       []string{"Beige"},
		tags:         []string{"mi-saison", "classique"},
		featured:     true,
	},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("parse database config: %v", err)
	}
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	categoryIDs := map[string]int64{}
	for _, c := range launchCategories {
		var id int64
		err := pool.QueryRow(ctx, `
			INSERT INTO categories (name, slug, is_active)
			VALUES ($1, $2, true)
			ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, updated_at = now()
			RETURNING id`, c.name, c.slug).Scan(&id)
		if err != nil {
			log.Fatalf("seed category %s: %v", c.slug, err)
		}
		categoryIDs[c.slug] = id
	}
	log.Printf("seeded %d categories", len(launchCategories))

	for _, p := range demoProducts {
		price, err := decimal.NewFromString(p.price)
		if err != nil {
			log.Fatalf("product %s: bad price: %v", p.slug, err)
		}
		var salePrice *decimal.Decimal
		if p.salePrice != "" {
			sp, err := decimal.NewFromString(p.salePrice)
			if err != nil {
				log.Fatalf("product %s: bad sale price: %v", p.slug, err)
			}
			salePrice = &sp
		}
		_, err = pool.Exec(ctx, `
			INSERT INTO products (name, slug, description, short_description, price, sale_price,
			                      sku, stock_quantity, category_id, images, sizes, colors, tags,
			                      is_active, is_featured)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, true, $14)
			ON CONFLICT (slug) DO UPDATE SET
				name = EXCLUDED.name,
				description = EXCLUDED.description,
				short_description = EXCLUDED.short_description,
				price = EXCLUDED.price,
				sale_price = EXCLUDED.sale_price,
				stock_quantity = EXCLUDED.stock_quantity,
				updated_at = now()`,
			p.name, p.slug, p.description, p.shortDesc, price, salePrice,
			p.sku, p.stock, categoryIDs[p.categorySlug], p.images, p.sizes, p.colors, p.tags,
			p.featured)
		if err != nil {
			log.Fatalf("seed product %s: %v", p.slug, err)
		}
	}
	log.Printf("seeded %d products", len(demoProducts))
	log.Println("seeding completed")
}
