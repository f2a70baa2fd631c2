package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"

	appLogger "github.com/FACorreiaa/minimarket-auth/app/logger"
	"github.com/FACorreiaa/minimarket-auth/config"
	"github.com/FACorreiaa/minimarket-auth/internal/api/ghost"
	"github.com/FACorreiaa/minimarket-auth/internal/container"
	"github.com/FACorreiaa/minimarket-auth/internal/types"
)

var (
	asJSON  = flag.Bool("json", false, "print the report as JSON")
	perPage = flag.Int("per-page", 0, "identity store page size, defaults to identity.listPerPage")
)

func printReport(report *types.GhostReport) error {
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Printf("identities: %d  profiles: %d  ghosts: %d\n", report.TotalIdentities, report.TotalProfiles, len(report.Ghosts))
	if len(report.Ghosts) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tUSERNAME")
	for _, g := range report.Ghosts {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", g.ID, g.Email, g.Username)
	}
	return tw.Flush()
}

// Lists identities that have no user profile. Exits 1 when any are found.
func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}
	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}
	logger := appLogger.New(cfg.Mode)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c, err := container.NewContainer(&cfg, logger)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	defer c.Close()

	scanner := c.GhostScanner
	if *perPage > 0 {
		scanner = ghost.NewScanner(c.Identities, c.Profiles, *perPage, logger)
	}

	report, err := scanner.Scan(ctx)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	if err = printReport(report); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	if len(report.Ghosts) > 0 {
		c.Close()
		os.Exit(1)
	}
}
