package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

func main() {
	var (
		databaseURL = flag.String("database", os.Getenv("SENTINEL_DATABASE_URL"), "Database URL")
		sourcePath  = flag.String("source", "file://migrations", "Migration source path")
		steps       = flag.Int("steps", 0, "Number of migrations to apply (0 = all)")
		down        = flag.Bool("down", false, "Migrate down instead of up")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if *databaseURL == "" {
		logger.Error("database URL is required (flag -database or SENTINEL_DATABASE_URL)")
		os.Exit(1)
	}

	m, err := migrate.New(*sourcePath, *databaseURL)
	if err != nil {
		logger.Error("failed to initialize migrator", "error", err)
		os.Exit(1)
	}
	defer m.Close()

	switch {
	case *steps != 0:
		n := *steps
		if *down {
			n = -n
		}
		err = m.Steps(n)
	case *down:
		err = m.Down()
	default:
		err = m.Up()
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		logger.Error("failed to read schema version", "error", verr)
		os.Exit(1)
	}
	logger.Info("migrations complete",
		"version", fmt.Sprintf("%d", version),
		"dirty", dirty,
	)
}
