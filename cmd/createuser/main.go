// Command createuser provisions a tooling tracker account.
//
//	createuser -username anna -role admin -password '...'
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/tooling-tracker/internal/config"
	"github.com/iliyamo/tooling-tracker/internal/database"
	"github.com/iliyamo/tooling-tracker/internal/model"
	"github.com/iliyamo/tooling-tracker/internal/repository"
	"github.com/iliyamo/tooling-tracker/internal/utils"
)

func main() {
	username := flag.String("username", "", "login name, also written to logbook entries")
	password := flag.String("password", os.Getenv("CREATEUSER_PASSWORD"), "plain password (or CREATEUSER_PASSWORD)")
	role := flag.String("role", model.RoleUser, "user, admin or root")
	flag.Parse()

	if *username == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}
	switch *role {
	case model.RoleUser, model.RoleAdmin, model.RoleRoot:
	default:
		log.Fatalf("unknown role %q", *role)
	}

	if err := utils.CheckPasswordPolicy(*password); err != nil {
		log.Fatal(err)
	}

	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	hash, err := utils.HashPassword(*password, cfg.BcryptCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	id, err := repository.NewUserRepo(db).Create(ctx, *username, hash, *role)
	if errors.Is(err, repository.ErrDuplicate) {
		log.Fatalf("user %q already exists", *username)
	}
	if err != nil {
		log.Fatalf("create user: %v", err)
	}
	log.Printf("created user %s (id=%d, role=%s)", *username, id, *role)
}
