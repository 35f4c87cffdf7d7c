// seed-landlord creates or updates a landlord login for local development.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//     go run ./cmd/seed-landlord -email dev@rentease.local -password devPassword1
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/mmdatafocus/rentease_backend/config"
	"github.com/mmdatafocus/rentease_backend/models"
	"github.com/mmdatafocus/rentease_backend/utils"
)

func main() {
	email := flag.String("email", "dev@rentease.local", "landlord email")
	password := flag.String("password", "", "landlord password (min 8 chars)")
	flag.Parse()

	if *password == "" {
		fmt.Fprintln(os.Stderr, "-password is required")
		os.Exit(2)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	existing, err := models.FindUserByEmail(ctx, db, *email)
	if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
		fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
		os.Exit(1)
	}

	if existing == nil {
		u := &models.User{
			Email:     *email,
			Role:      models.UserRoleLandlord,
			FirstName: "Dev",
			LastName:  "Landlord",
		}
		if err := u.SetPassword(*password); err != nil {
			fmt.Fprintf(os.Stderr, "invalid password: %v\n", err)
			os.Exit(1)
		}
		if err := models.CreateUser(ctx, db, u); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create landlord: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created landlord: email=%q id=%d\n", u.Email, u.ID)
		return
	}

	if err := existing.SetPassword(*password); err != nil {
		fmt.Fprintf(os.Stderr, "invalid password: %v\n", err)
		os.Exit(1)
	}
	if err := db.WithContext(ctx).Model(&models.User{}).Where("id = ?", existing.ID).
		Update("password_hash", existing.PasswordHash).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update landlord: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Updated landlord password: email=%q id=%d\n", *email, existing.ID)
}
