package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"rentalhub/internal/config"
	"rentalhub/internal/database"
	"rentalhub/internal/domain"
	"rentalhub/internal/export"
	"rentalhub/internal/logging"
	"rentalhub/internal/models"
	"rentalhub/internal/pgstore"
	"rentalhub/internal/service"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const usage = `usage: rentalctl [-config path] <command> [flags]

commands:
  sync-products -file products.yaml   upsert the product catalog by id
  export -from YYYY-MM-DD -to YYYY-MM-DD   write the xlsx report for [from, to)
  backup                              snapshot the SQLite database and prune old copies
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("rentalctl", flag.ContinueOnError)
	configPath := global.String("config", defaultConfigPath(), "path to config.yaml")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("missing command")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer closer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, sqliteDB, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "sync-products":
		return syncProducts(ctx, store, rest, logger)
	case "export":
		return exportPeriod(ctx, store, cfg.Exports.Path, rest, logger)
	case "backup":
		if sqliteDB == nil {
			return errors.New("backup is only supported for the sqlite driver")
		}
		return backup(ctx, sqliteDB, cfg.Backup, logger)
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func defaultConfigPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "configs/config.yaml"
}

func openStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.Store, *database.DB, error) {
	if cfg.Database.Driver == config.DriverPostgres {
		store, err := pgstore.Connect(ctx, cfg.Database.Postgres, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		return store, nil, nil
	}
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	return db, db, nil
}

type productsFile struct {
	Products []models.Product `yaml:"products"`
}

func syncProducts(ctx context.Context, store domain.Store, args []string, logger *zerolog.Logger) error {
	fs := flag.NewFlagSet("sync-products", flag.ContinueOnError)
	path := fs.String("file", "configs/products.yaml", "path to a YAML file with a products list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	data, err := os.ReadFile(*path)
	if err != nil {
		return fmt.Errorf("read products: %w", err)
	}
	var file productsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse products: %w", err)
	}
	if len(file.Products) == 0 {
		return errors.New("no products in yaml")
	}
	if err := config.ValidateProducts(file.Products); err != nil {
		return err
	}

	if err := service.NewCatalogService(store, logger).SyncProducts(ctx, file.Products); err != nil {
		return err
	}
	fmt.Printf("done: synced=%d\n", len(file.Products))
	return nil
}

func exportPeriod(ctx context.Context, store domain.Store, dir string, args []string, logger *zerolog.Logger) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fromRaw := fs.String("from", "", "first day, inclusive (YYYY-MM-DD)")
	toRaw := fs.String("to", "", "last day, exclusive (YYYY-MM-DD)")
	out := fs.String("dir", dir, "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	from, err := time.Parse("2006-01-02", *fromRaw)
	if err != nil {
		return fmt.Errorf("invalid -from: %w", err)
	}
	to, err := time.Parse("2006-01-02", *toRaw)
	if err != nil {
		return fmt.Errorf("invalid -to: %w", err)
	}

	path, err := export.NewExporter(store, *out, logger).SaveFile(ctx, from, to)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func backup(ctx context.Context, db *database.DB, cfg config.BackupConfig, logger *zerolog.Logger) error {
	svc := database.NewBackupService(db, cfg, logger)
	path, err := svc.PerformBackup(ctx)
	if err != nil {
		return err
	}
	removed := svc.CleanupOldBackups()
	fmt.Printf("done: backup=%s pruned=%d\n", path, removed)
	return nil
}
