// Command main runs the database seeder for Terrace.
package main

import (
	"flag"
	"log"

	"terrace/internal/config"
	"terrace/internal/database"
	"terrace/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numMatches := flag.Int("matches", 10, "Number of matches to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Println("Database Seeder")
	log.Printf("Target: %d users, %d matches, clean=%v\n", *numUsers, *numMatches, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db)

	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	users, err := s.SeedUsers(*numUsers)
	if err != nil {
		log.Fatalf("User seeding failed: %v", err)
	}

	matches, err := s.SeedMatches(*numMatches)
	if err != nil {
		log.Fatalf("Match seeding failed: %v", err)
	}

	if _, err := s.SeedBattles(matches, users); err != nil {
		log.Fatalf("Battle seeding failed: %v", err)
	}

	if _, err := s.SeedCommentThreads(matches, users); err != nil {
		log.Fatalf("Comment seeding failed: %v", err)
	}

	log.Println("Seeding complete")
}
