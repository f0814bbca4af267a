// Command migrate manages the MySQL schema using the migrations embedded in
// the server binary.
//
//	migrate up          apply all pending migrations
//	migrate down        roll back every migration
//	migrate steps N     apply N migrations (negative N rolls back)
//	migrate version     print the current version
//	migrate force N     set the version without running anything
//	migrate list        print the embedded migration files
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"

	"github.com/iliyamo/cruise-services/internal/config"
	"github.com/iliyamo/cruise-services/internal/database"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cmd, args := os.Args[1], os.Args[2:]

	if cmd == "list" {
		names, err := database.Migrations()
		check(err)
		for _, n := range names {
			fmt.Println(n)
		}
		return
	}

	config.LoadDotEnv()
	cfg := config.Load()
	if cfg.StorageBackend != "mysql" {
		fail("STORAGE_BACKEND=%s has no schema to migrate", cfg.StorageBackend)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := database.Open(ctx, cfg.DSN())
	check(err)
	defer db.Close()

	m, err := database.NewMigrator(db)
	check(err)

	switch cmd {
	case "up":
		check(m.Up())
	case "down":
		check(m.Down())
	case "steps":
		check(m.Steps(intArg(args)))
	case "force":
		check(m.Force(intArg(args)))
	case "version":
	default:
		usage()
	}

	v, dirty, err := m.Version()
	check(err)
	state := color.GreenString("clean")
	if dirty {
		state = color.RedString("dirty")
	}
	fmt.Printf("schema version %d (%s)\n", v, state)
}

func intArg(args []string) int {
	if len(args) != 1 {
		usage()
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		fail("invalid number %q", args[0])
	}
	return n
}

func check(err error) {
	if err != nil {
		fail("%v", err)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintln(os.Stderr, color.RedString("migrate: "+format, args...))
	os.Exit(1)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: migrate up|down|steps N|version|force N|list")
	os.Exit(2)
}
