// Command migrate applies the schema and first-boot data without starting the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"campuschat/internal/bootstrap"
	"campuschat/internal/config"
	"campuschat/internal/database"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate <up|status>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Connect applies the schema.
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	switch cmd := strings.ToLower(strings.TrimSpace(flag.Arg(0))); cmd {
	case "up":
		if err := bootstrap.Prepare(context.Background(), cfg, db, bootstrap.Options{}); err != nil {
			return fmt.Errorf("bootstrap failed: %w", err)
		}
		log.Println("schema and default settings applied")
	case "status":
		for _, m := range database.PersistentModels() {
			log.Printf("%T present=%t", m, db.Migrator().HasTable(m))
		}
	default:
		return usage()
	}

	return nil
}
