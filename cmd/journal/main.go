package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/pressly/goose/v3"
	flag "github.com/spf13/pflag"

	"telemux/internal/model"
	"telemux/internal/storage"
	"telemux/migrations"
)

func main() {
	dbPath := flag.String("db", envOrDefault("TELEMUX_JOURNAL_PATH", defaultJournal()), "path to the journal database")
	limit := flag.IntP("limit", "n", 20, "number of rows for recent")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(1)
	}

	if err := run(context.Background(), os.Stdout, *dbPath, *limit, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "journal: %v\n", err)
		os.Exit(1)
	}
}

// run executes one command. recent and stats read the journal as it is;
// only migrate changes the schema.
func run(ctx context.Context, out io.Writer, dbPath string, limit int, args []string) error {
	switch args[0] {
	case "recent", "stats":
		if _, err := os.Stat(dbPath); err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
	case "migrate":
		if len(args) < 2 {
			return errors.New("migrate: missing command (up, down, status, version)")
		}
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}

	j, err := storage.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	switch args[0] {
	case "recent":
		if err := printRecent(ctx, out, j, limit); err != nil {
			return fmt.Errorf("recent: %w", err)
		}
	case "stats":
		if err := printStats(ctx, out, j); err != nil {
			return fmt.Errorf("stats: %w", err)
		}
	case "migrate":
		if err := migrate(j.DB(), args[1]); err != nil {
			return fmt.Errorf("migrate %s: %w", args[1], err)
		}
	}
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: journal [--db path] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  recent [-n N]     Show the latest processed updates")
	fmt.Fprintln(os.Stderr, "  stats             Count processed updates by outcome")
	fmt.Fprintln(os.Stderr, "  migrate up        Migrate to the latest version")
	fmt.Fprintln(os.Stderr, "  migrate down      Roll back one version")
	fmt.Fprintln(os.Stderr, "  migrate status    Show migration status")
	fmt.Fprintln(os.Stderr, "  migrate version   Show current version")
	fmt.Fprintln(os.Stderr, "")
	flag.PrintDefaults()
}

func printRecent(ctx context.Context, out io.Writer, j storage.Journal, limit int) error {
	rows, err := j.ListRecent(ctx, limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tUPDATE\tSESSION\tOUTCOME\tBYPASS\tERROR")
	for _, d := range rows {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%t\t%s\n",
			d.CreatedAt.Local().Format(time.DateTime), d.UpdateID, orDash(d.Session), d.Outcome, d.Bypass, orDash(d.Error))
	}
	return w.Flush()
}

func printStats(ctx context.Context, out io.Writer, j storage.Journal) error {
	counts, err := j.CountByOutcome(ctx)
	if err != nil {
		return err
	}
	outcomes := make([]model.Outcome, 0, len(counts))
	for o := range counts {
		outcomes = append(outcomes, o)
	}
	slices.Sort(outcomes)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OUTCOME\tCOUNT")
	for _, o := range outcomes {
		fmt.Fprintf(w, "%s\t%d\n", o, counts[o])
	}
	return w.Flush()
}

func migrate(db *sql.DB, cmd string) error {
	if err := migrations.Setup(); err != nil {
		return err
	}

	switch cmd {
	case "up":
		return goose.Up(db, ".")
	case "down":
		return goose.Down(db, ".")
	case "status":
		return goose.Status(db, ".")
	case "version":
		return goose.Version(db, ".")
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func defaultJournal() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "journal.db"
	}
	return filepath.Join(home, ".telemux", "journal.db")
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
