// migrate applies the embedded Postgres schema; run it before starting the
// server with STORAGE_TYPE=postgres.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	direction := flag.String("direction", "up", "Migration direction: up or down")
	dsn := flag.String("database-url", os.Getenv("DATABASE_URL"), "Postgres DSN (env: DATABASE_URL)")
	flag.Parse()

	if err := postgres.Migrate(*dsn, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	fmt.Printf("migrations applied (%s)\n", *direction)
}
