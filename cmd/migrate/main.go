package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/angelmondragon/ltv-backend/pkg/config"
	"github.com/angelmondragon/ltv-backend/pkg/db"
	"github.com/angelmondragon/ltv-backend/pkg/logger"
	"github.com/angelmondragon/ltv-backend/pkg/migrate"
	"github.com/joho/godotenv"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", "", "goose migrations directory (default: migrations embedded in the binary)")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", opts.cmd, err)
		os.Exit(1)
	}
}

func run(opts options) error {
	// create and validate never touch a database or the environment
	switch opts.cmd {
	case "create":
		return create(opts)
	case "validate":
		return validate(opts.dir)
	case "up", "down", "status", "version":
	default:
		return fmt.Errorf("unknown command %q", opts.cmd)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	driver := cfg.DB.DriverName()
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"cmd":    opts.cmd,
		"driver": driver,
	})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "database unavailable", err)
		return err
	}
	defer client.Close()

	sqlDB, err := client.SQL()
	if err != nil {
		return err
	}

	if opts.cmd == "version" {
		if opts.version == "" {
			return fmt.Errorf("missing -version")
		}
		err = migrate.MigrateToVersion(ctx, sqlDB, driver, opts.dir, opts.version)
	} else {
		err = migrate.Run(ctx, sqlDB, driver, opts.dir, opts.cmd)
	}
	if err != nil {
		logg.Error(ctx, "migration failed", err)
		return err
	}
	logg.Info(ctx, "migration finished")
	return nil
}

func create(opts options) error {
	if opts.name == "" {
		return fmt.Errorf("missing -name")
	}
	target := opts.dir
	if target == "" {
		target = migrate.DefaultDir
	}
	path, err := migrate.CreateSQLMigration(target, opts.name)
	if err != nil {
		return err
	}
	fmt.Println("created migration:", path)
	return nil
}

func validate(dir string) error {
	var (
		versions []string
		err      error
	)
	if dir == "" {
		versions, err = migrate.ValidateEmbedded()
	} else {
		versions, err = migrate.ValidateDir(dir)
	}
	if err != nil {
		return err
	}
	last := "none"
	if n := len(versions); n > 0 {
		last = versions[n-1]
	}
	fmt.Printf("migration validation passed (%d files, latest %s)\n", len(versions), last)
	return nil
}
