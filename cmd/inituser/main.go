package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/simple-trust/pkg/config"
	"github.com/tendant/simple-trust/pkg/user"
)

func main() {
	username := flag.String("username", "", "Username for the new user (required)")
	password := flag.String("password", "", "Password for the new user (required)")
	email := flag.String("email", "", "Email for new device notices")
	admin := flag.Bool("admin", false, "Grant admin rights")
	forceTrust := flag.Bool("force-trust", false, "Trust the first device this user signs in from, even if others exist")
	flag.Parse()

	if *username == "" || *password == "" {
		fmt.Println("Error: username and password are required")
		flag.Usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	var dbCfg config.DatabaseConfig
	if err := cleanenv.ReadEnv(&dbCfg); err != nil {
		slog.Error("Failed reading database config", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	dbConfig := dbCfg.ToDbConfig()
	pool, err := dbutils.NewDbPool(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
		os.Exit(1)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		slog.Error("Failed to start transaction", "err", err)
		os.Exit(1)
	}
	defer tx.Rollback(ctx)

	users := user.NewUserService(user.NewPostgresUserRepository(tx))
	u, err := users.CreateUser(ctx, *username, *email, *password, *admin)
	if err != nil {
		slog.Error("Failed to create user", "username", *username, "err", err)
		os.Exit(1)
	}
	if *forceTrust {
		if err := users.ForceTrustNextDevice(ctx, u.ID); err != nil {
			slog.Error("Failed to set force trust", "userID", u.ID, "err", err)
			os.Exit(1)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		slog.Error("Failed to commit transaction", "err", err)
		os.Exit(1)
	}

	slog.Info("User created successfully", "username", u.Username, "userID", u.ID, "admin", u.Admin, "forceTrust", *forceTrust)
}
