// Command migrate applies or rolls back the embedded schema migrations.
//
//	migrate up          apply everything pending
//	migrate down [n]    roll back n migrations (default 1)
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/iliyamo/marketplace-backend/internal/config"
	"github.com/iliyamo/marketplace-backend/internal/database"
	"github.com/iliyamo/marketplace-backend/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: migrate up | down [n]")
		os.Exit(2)
	}
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, "text")

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	switch os.Args[1] {
	case "up":
		err = database.MigrateUp(db)
	case "down":
		steps := 1
		if len(os.Args) > 2 {
			if steps, err = strconv.Atoi(os.Args[2]); err != nil {
				log.Fatalf("invalid step count %q", os.Args[2])
			}
		}
		err = database.MigrateDown(db, steps)
	default:
		log.Fatalf("unknown command %q", os.Args[1])
	}
	if err != nil {
		log.WithError(err).Fatal("migration failed")
	}
	log.Infof("migrate %s: done", os.Args[1])
}
