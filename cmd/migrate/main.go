package main

import (
	"errors"
	"fitclub/internal/pkg/config"
	"flag"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	var (
		dir   = flag.String("path", "migrations", "migrations directory")
		down  = flag.Bool("down", false, "roll back one step")
		force = flag.Int("force", -1, "force version after a failed migration, then exit")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Unable to load config: %v", err)
	}

	m, err := migrate.New("file://"+*dir, cfg.Database.DSN())
	if err != nil {
		log.Fatal(err)
	}
	defer m.Close()

	if *force >= 0 {
		if err := m.Force(*force); err != nil {
			log.Fatalf("Failed to force version %d: %v", *force, err)
		}
		log.Printf("Forced version %d", *force)
		return
	}

	if *down {
		err = m.Steps(-1)
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		var dirty migrate.ErrDirty
		if errors.As(err, &dirty) {
			log.Fatalf("Database is dirty at version %d, fix it and rerun with -force %d", dirty.Version, dirty.Version-1)
		}
		log.Fatal(err)
	}

	version, isDirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		log.Fatal(err)
	}
	log.Printf("Migration successful, version=%d dirty=%v", version, isDirty)
}
