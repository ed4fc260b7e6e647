// Команда utilbatch - разовые операции оператора над хранилищем.
//
//	utilbatch ensure-schema
//	utilbatch initialize-context -product <id|All>
//	utilbatch purge-open-orders -product <id|All>
//	utilbatch encrypt-secret -secret <value>
//	utilbatch hash-token -token <value>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"vcautotrade/internal/config"
	"vcautotrade/internal/repository"
	"vcautotrade/internal/service"
	"vcautotrade/pkg/crypto"
	"vcautotrade/pkg/utils"
)

const usage = `usage: utilbatch <command> [flags]

commands:
  ensure-schema                          create the record table if missing
  initialize-context -product <id|All>   reset contexts to defaults
  purge-open-orders  -product <id|All>   delete UNKNOWN/ACTIVE order records
  encrypt-secret     -secret <value>     encrypt an exchange API secret with ENCRYPTION_KEY
  hash-token         -token <value>      bcrypt hash for OPERATOR_TOKEN_HASH
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := utils.InitGlobalLogger(utils.LogConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := dispatch(ctx, cfg, logger, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("utilbatch failed", zap.String("command", os.Args[1]), zap.Error(err))
		cancel()
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, cfg *config.Config, logger *utils.Logger, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	product := fs.String("product", "", "product id or All")
	secret := fs.String("secret", "", "plain exchange API secret")
	token := fs.String("token", "", "plain operator token")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch cmd {
	case "encrypt-secret":
		if *secret == "" {
			return fmt.Errorf("-secret is required")
		}
		enc, err := crypto.EncryptSecret(*secret, cfg.Security.EncryptionKey)
		if err != nil {
			return err
		}
		fmt.Println(enc)
		return nil

	case "hash-token":
		hash, err := crypto.HashToken(*token, crypto.DefaultCost)
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil

	case "ensure-schema", "initialize-context", "purge-open-orders":
		return withStore(ctx, cfg, logger, func(store *repository.PostgresStore) error {
			return runStoreCommand(ctx, cfg, logger, store, cmd, *product)
		})

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func withStore(ctx context.Context, cfg *config.Config, logger *utils.Logger, fn func(*repository.PostgresStore) error) error {
	db, err := repository.OpenDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to database", zap.String("dsn", cfg.Database.DSNWithoutPassword()))
	return fn(repository.NewPostgresStore(db))
}

func runStoreCommand(ctx context.Context, cfg *config.Config, logger *utils.Logger, store *repository.PostgresStore, cmd, product string) error {
	if cmd == "ensure-schema" {
		return store.EnsureSchema(ctx)
	}

	products, err := cfg.SelectProducts(product)
	if err != nil {
		return err
	}

	svc := service.NewContextService(
		repository.NewContextRepository(store),
		repository.NewLivenessRepository(store),
		repository.NewTradeReportRepository(store),
		repository.NewOrderRepository(store),
		logger,
	)

	switch cmd {
	case "initialize-context":
		return svc.InitializeContexts(ctx, products)
	default:
		n, err := svc.PurgeOpenOrders(ctx, products)
		if err != nil {
			return err
		}
		logger.Info("purge finished", zap.Int("deleted", n))
		return nil
	}
}
