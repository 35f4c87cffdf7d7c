// billing-run generates the pending bills for a period ahead of any payment,
// for every active tenant with an assigned unit. Safe to re-run: tenants that
// already have a bill for the period are skipped.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//     go run ./cmd/billing-run -month 9 -year 2026
//
// Omitting -month/-year uses the current calendar month.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mmdatafocus/rentease_backend/config"
	"github.com/mmdatafocus/rentease_backend/models"
	"github.com/mmdatafocus/rentease_backend/workflow"
)

func main() {
	curMonth, curYear := models.CurrentPeriod(time.Now())
	month := flag.Int("month", curMonth, "billing month (1-12)")
	year := flag.Int("year", curYear, "billing year")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	repo := models.NewRepository(db)
	created, err := workflow.GenerateBillingRun(ctx, repo, config.GetLogger(), *month, *year)
	if err != nil {
		fmt.Fprintf(os.Stderr, "billing run failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Billing run %d-%02d: created %d bills\n", *year, *month, created)
}
