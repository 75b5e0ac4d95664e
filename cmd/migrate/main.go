package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/config"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/db"
)

const usage = `usage: migrate <command>

commands:
  up            apply every pending migration
  down [n]      roll back n migrations (default 1)
  force <v>     mark version v as applied without running it
  version       print the current version`

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	mg, err := db.NewMigrator(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("migrator init: %v", err)
	}
	defer func() {
		if err := mg.Close(); err != nil {
			log.Printf("close migrator: %v", err)
		}
	}()

	if err := run(mg, args); err != nil {
		log.Printf("%s failed: %v", args[0], err)
		os.Exit(1)
	}
}

func run(mg *db.Migrator, args []string) error {
	switch args[0] {
	case "up":
		if err := mg.Up(); err != nil {
			return err
		}
	case "down":
		n := 1
		if len(args) > 1 {
			v, err := strconv.Atoi(args[1])
			if err != nil || v < 1 {
				return fmt.Errorf("down expects a positive step count, got %q", args[1])
			}
			n = v
		}
		if err := mg.Down(n); err != nil {
			return err
		}
	case "force":
		if len(args) < 2 {
			return fmt.Errorf("force needs a version")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[1])
		}
		if err := mg.Force(v); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}

	v, dirty, err := mg.Version()
	if err != nil {
		return err
	}
	log.Printf("schema version=%d dirty=%t", v, dirty)
	return nil
}
