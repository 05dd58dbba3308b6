// File: cmd/seed/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"vpn-subscription-billing/internal/config"
	pg "vpn-subscription-billing/internal/infra/db/postgres"
)

// Seeds a development catalog: a few tariffs and one test user. The billing
// core never writes the catalog itself, so this bypasses the repositories
// and inserts rows directly.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	var existing int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM tariffs`).Scan(&existing); err != nil {
		log.Fatalf("count tariffs: %v", err)
	}
	if existing > 0 {
		fmt.Printf("%d tariffs already present. No changes.\n", existing)
		return
	}

	seed := []struct {
		Name    string
		Prices  map[string]int64
		Days    int
		GB      *int
		Devices int
		Group   string
	}{
		{"Monthly", map[string]int64{"RUB": 29900, "USD": 399, "XTR": 150}, 30, intPtr(500), 3, "standard"},
		{"Quarterly", map[string]int64{"RUB": 74900, "USD": 999, "XTR": 400}, 90, intPtr(1500), 3, "standard"},
		{"Yearly Unlimited", map[string]int64{"RUB": 249900, "USD": 2999}, 365, nil, 5, "premium"},
	}

	for _, s := range seed {
		prices, err := json.Marshal(s.Prices)
		if err != nil {
			log.Fatalf("marshal prices for %q: %v", s.Name, err)
		}
		id := uuid.NewString()
		_, err = pool.Exec(ctx, `
			INSERT INTO tariffs (id, name, prices, duration_days, traffic_limit_gb, device_limit, group_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
			id, s.Name, prices, s.Days, s.GB, s.Devices, s.Group,
		)
		if err != nil {
			log.Fatalf("insert tariff %q: %v", s.Name, err)
		}
		fmt.Printf("seeded tariff: %s (id=%s, days=%d)\n", s.Name, id, s.Days)
	}

	userID := uuid.NewString()
	_, err = pool.Exec(ctx, `
		INSERT INTO users (id, provisioning_id, balance_minor, created_at)
		VALUES ($1, $2, 0, now())`,
		userID, "dev-"+userID[:8],
	)
	if err != nil {
		log.Fatalf("insert test user: %v", err)
	}
	fmt.Printf("seeded test user: %s\n", userID)

	fmt.Println("Seeding complete.")
}

func intPtr(v int) *int { return &v }
