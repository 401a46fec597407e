// Command main runs the database seeder for campus chat.
package main

import (
	"context"
	"flag"
	"log"

	"campuschat/internal/bootstrap"
	"campuschat/internal/config"
	"campuschat/internal/database"
	"campuschat/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 200, "Number of students to create")
	numBlocks := flag.Int("blocks", 40, "Number of random block edges")
	reported := flag.Int("reported", 3, "Number of students pushed into the moderation queue")
	shouldClean := flag.Bool("clean", true, "Remove existing students before seeding")
	fast := flag.Bool("fast", true, "Hash passwords at minimum bcrypt cost")
	dryRun := flag.Bool("dry-run", false, "Build data without writing it")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d students, %d blocks, clean=%v\n", *numUsers, *numBlocks, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := bootstrap.Prepare(context.Background(), cfg, db, bootstrap.Options{SeedDemoSettings: true}); err != nil {
		log.Fatalf("❌ Bootstrap failed: %v", err)
	}

	res, err := seed.Seed(db, seed.Options{
		NumUsers:      *numUsers,
		NumBlocks:     *numBlocks,
		ReportedUsers: *reported,
		ShouldClean:   *shouldClean,
		Factory: seed.FactoryOptions{
			SkipBcrypt:  *fast,
			DryRun:      *dryRun,
			EmailDomain: cfg.EmailDomain,
		},
	})
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ All done! %d students, %d blocks, %d reports.", res.Users, res.Blocks, res.Reports)
	log.Printf("📧 All demo students have the password: %s", seed.DefaultPassword)
}
