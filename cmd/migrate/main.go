package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/kdimtricp/paintestimator/internal/database"
)

func main() {
	_ = godotenv.Load()

	defaultPath := os.Getenv("DB_PATH")
	if defaultPath == "" {
		defaultPath = "./paintestimator.db"
	}

	var (
		dbPath = flag.String("db", defaultPath, "Path to the sqlite history database")
		status = flag.Bool("status", false, "Show migration status only")
	)
	flag.Parse()

	if *status {
		// NewDB migrates on open, so status uses a bare connection.
		conn, err := database.Open(*dbPath)
		if err != nil {
			log.Fatal("Failed to open database: ", err)
		}
		defer conn.Close()

		migrator := database.NewMigrator(conn, nil)
		if err := migrator.Initialize(); err != nil {
			log.Fatal("Failed to initialize migrator: ", err)
		}

		applied, err := migrator.GetAppliedMigrations()
		if err != nil {
			log.Fatal("Failed to get applied migrations: ", err)
		}

		migrations, err := migrator.LoadMigrations(database.Migrations(), "migrations")
		if err != nil {
			log.Fatal("Failed to load migrations: ", err)
		}

		fmt.Println("Migration Status:")
		fmt.Println("=================")
		for _, m := range migrations {
			state := "pending"
			if applied[m.Version] {
				state = "applied"
			}
			fmt.Printf("%s - %s [%s]\n", m.Version, m.Name, state)
		}
		return
	}

	fmt.Printf("Migrating %s...\n", *dbPath)
	db, err := database.NewDB(database.Config{SQLitePath: *dbPath})
	if err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}
	db.Close()
	fmt.Println("Migrations completed successfully!")
}
