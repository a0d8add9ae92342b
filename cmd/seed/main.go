package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/arklim/medportal-api/internal/infra/config"
	"github.com/arklim/medportal-api/internal/infra/database"
	"github.com/arklim/medportal-api/internal/infra/logger"
	"github.com/arklim/medportal-api/internal/infra/security"
	postgresrepo "github.com/arklim/medportal-api/internal/repository/postgres"
	"github.com/arklim/medportal-api/internal/seed"
)

func main() {
	count := flag.Int("count", 50, "number of accounts to create")
	password := flag.String("password", "", "password shared by every seeded account")
	role := flag.Int64("role", 0, "role id for seeded accounts (defaults to patient)")
	randSeed := flag.Int64("seed", 0, "faker seed, 0 for random")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, zl)
	if err != nil {
		zl.Fatal("init postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := database.MigratePool(ctx, pool, zl); err != nil {
		zl.Fatal("migrate postgres", zap.Error(err))
	}

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		zl.Fatal("configure argon2", zap.Error(err))
	}

	repos := postgresrepo.NewRepositories(pool)
	result, err := seed.New(repos.Accounts, hasher, *randSeed, zl).Run(ctx, *count, *password, *role)
	if err != nil {
		zl.Error("seeding stopped", zap.Error(err), zap.Int("created", len(result.Created)))
		os.Exit(1)
	}
}
