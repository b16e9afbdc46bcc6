package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/hackgods/appointment-routing-saga/internal/appointment"
	"github.com/hackgods/appointment-routing-saga/internal/config"
	"github.com/hackgods/appointment-routing-saga/internal/db"
	"github.com/hackgods/appointment-routing-saga/migrations"
)

// Applies the schema to every configured country database.
//
//	migrate                    up on all countries
//	migrate force <version>    force the version on all countries
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if err := cfg.Validate(config.RoleMigrate); err != nil {
		log.Fatalf("config error: %v", err)
	}

	force := -1
	if len(os.Args) >= 3 && os.Args[1] == "force" {
		force, err = strconv.Atoi(os.Args[2])
		if err != nil {
			log.Fatalf("invalid version: %v", err)
		}
	}

	for _, country := range appointment.SupportedCountries() {
		dsn, ok := cfg.PostgresDSNs[country]
		if !ok {
			continue
		}
		if err := run(dsn, force); err != nil {
			log.Fatalf("%s: %v", country, err)
		}
		fmt.Printf("%s: migrations complete\n", country)
	}
}

func run(dsn string, force int) error {
	m, err := db.NewMigrator(dsn, migrations.FS)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	if force >= 0 {
		if err := m.Force(force); err != nil {
			return fmt.Errorf("force version: %w", err)
		}
		return nil
	}
	return db.MigrateUp(m)
}
