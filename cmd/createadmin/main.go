// Command createadmin creates an admin account.  Admins cannot register
// through the API.
//
//	createadmin -email ops@example.com -name Ops -password '...'
//
// The password may be given in ADMIN_PASSWORD instead of the flag.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/iliyamo/marketplace-backend/internal/config"
	"github.com/iliyamo/marketplace-backend/internal/database"
	"github.com/iliyamo/marketplace-backend/internal/logging"
	"github.com/iliyamo/marketplace-backend/internal/model"
	"github.com/iliyamo/marketplace-backend/internal/repository"
	"github.com/iliyamo/marketplace-backend/internal/utils"
)

func main() {
	email := flag.String("email", "", "admin email (required)")
	name := flag.String("name", "Admin", "display name")
	password := flag.String("password", os.Getenv("ADMIN_PASSWORD"), "password, at least 8 characters")
	flag.Parse()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel, "text")

	if *email == "" || len(*password) < 8 {
		flag.Usage()
		os.Exit(2)
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	hash, err := utils.HashPassword(*password, cfg.BcryptCost)
	if err != nil {
		log.WithError(err).Fatal("hash password")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	admin := &model.Admin{Email: *email, Name: *name, PasswordHash: hash}
	err = repository.NewAccountRepo(db).CreateAdmin(ctx, admin)
	if errors.Is(err, repository.ErrEmailExists) {
		log.Fatalf("an admin with email %s already exists", *email)
	}
	if err != nil {
		log.WithError(err).Fatal("create admin")
	}
	log.WithField("id", admin.ID).Info("admin created")
}
