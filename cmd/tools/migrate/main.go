package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/noah-isme/toko-pricing/internal/store"
)

// migrate applies or reverts the store tax code schema.
func main() {
	_ = godotenv.Load()
	var (
		direction   = flag.String("dir", "up", "up applies every pending migration, down reverts the latest one")
		databaseURL = flag.String("database", os.Getenv("DATABASE_URL"), "postgres connection URL")
	)
	flag.Parse()

	if strings.TrimSpace(*databaseURL) == "" {
		fmt.Fprintln(os.Stderr, "migrate: DATABASE_URL or -database is required")
		os.Exit(2)
	}

	var err error
	switch strings.ToLower(*direction) {
	case "up":
		err = store.Migrate(*databaseURL)
	case "down":
		err = store.Rollback(*databaseURL)
	default:
		fmt.Fprintf(os.Stderr, "migrate: unknown direction %q\n", *direction)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("migrate %s: OK\n", *direction)
}
