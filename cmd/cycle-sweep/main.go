// cycle-sweep runs one rent-cycle sweep and exits: refreshes every active
// tenant's cached cycle view from the receipt ledger and, on a month
// rollover, generates the new period's bills. Intended for schedulers that
// prefer a job over hitting the service's internal endpoint.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//     go run ./cmd/cycle-sweep
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mmdatafocus/rentease_backend/config"
	"github.com/mmdatafocus/rentease_backend/models"
	"github.com/mmdatafocus/rentease_backend/workflow"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	config.ConnectRedis()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	repo := models.NewRepository(db)
	summary, err := workflow.RunRentCycleSweep(ctx, repo, config.GetLogger(), time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "cycle sweep failed: %v\n", err)
		os.Exit(1)
	}
	if summary.Skipped {
		fmt.Println("Sweep skipped: another instance holds the lock")
		return
	}
	fmt.Printf("Sweep done: %d tenants refreshed, %d failed, %d bills generated\n",
		summary.TenantsProcessed, summary.TenantsFailed, summary.BillsGenerated)
}
