// Package main applies the forward-only SQL migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/replyreminder/replyreminder/internal/logging"
	"github.com/replyreminder/replyreminder/internal/migrations"
)

func main() {
	var (
		command     = flag.String("command", "up", "Migration command: up or status")
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		timeout     = flag.Duration("timeout", time.Minute, "Overall timeout")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	logger := logging.New(os.Stderr, os.Getenv("LOG_LEVEL"), "text")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := migrations.Open(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", logging.SanitizeError(err, *databaseURL))
		os.Exit(1)
	}
	defer db.Close()

	m := migrations.New(db, migrations.Files(), logger)

	switch *command {
	case "up":
		applied, err := m.Up(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
		fmt.Printf("applied %d migration(s)\n", len(applied))

	case "status":
		all, err := m.Status(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "status:", err)
			os.Exit(1)
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
		for _, mig := range all {
			applied := "pending"
			if mig.AppliedAt != nil {
				applied = mig.AppliedAt.UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", mig.Version, mig.Name, applied)
		}
		tw.Flush()

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want up or status)\n", *command)
		os.Exit(2)
	}
}
