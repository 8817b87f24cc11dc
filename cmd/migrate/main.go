// Command migrate applies the SQL migrations under migrations/ against the
// configured DATABASE_URL.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/invigo/invigo-backend/internal/config"
)

func main() {
	var dir string
	flag.StringVar(&dir, "path", "migrations", "Path to migration files")
	flag.Parse()

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	m, err := migrate.New("file://"+dir, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Migration init: %v", err)
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	if err := run(m, args); err != nil {
		log.Fatal(err)
	}
}

func run(m *migrate.Migrate, args []string) error {
	switch args[0] {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("up: %w", err)
		}
		fmt.Println("Migrated up successfully")
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("down: %w", err)
		}
		fmt.Println("Migrated down successfully")
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return fmt.Errorf("version: %w", err)
		}
		fmt.Printf("Version: %d, Dirty: %t\n", version, dirty)
	case "force":
		if len(args) < 2 {
			return errors.New("force requires a version argument")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if err := m.Force(v); err != nil {
			return fmt.Errorf("force: %w", err)
		}
		fmt.Printf("Forced version to %d\n", v)
	default:
		usage()
		os.Exit(2)
	}
	return nil
}

func usage() {
	fmt.Println("Usage: migrate [-path dir] <up|down|version|force <version>>")
	flag.PrintDefaults()
}
