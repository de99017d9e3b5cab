// Command fintrack-csv imports or exports the transaction ledger as CSV
// directly against the database file, without a running server.
//
// Usage:
//
//	fintrack-csv -db ./data/fintrack.db import transactions.csv
//	fintrack-csv -db ./data/fintrack.db export > transactions.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"fintrack/internal/config"
	"fintrack/internal/csvio"
	"fintrack/internal/storage"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	dbPath := flag.String("db", cfg.SQLiteDBPath, "path to the SQLite database")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: fintrack-csv [-db path] import <file.csv> | export")
		os.Exit(2)
	}

	repo, err := storage.NewSQLiteRepository(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close()

	ctx := context.Background()
	switch flag.Arg(0) {
	case "import":
		if flag.NArg() != 2 {
			fmt.Fprintln(os.Stderr, "usage: fintrack-csv import <file.csv>")
			os.Exit(2)
		}
		if err := runImport(ctx, repo, flag.Arg(1)); err != nil {
			fmt.Fprintf(os.Stderr, "import: %v\n", err)
			os.Exit(1)
		}
	case "export":
		if err := runExport(ctx, repo); err != nil {
			fmt.Fprintf(os.Stderr, "export: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", flag.Arg(0))
		os.Exit(2)
	}
}

func runImport(ctx context.Context, repo *storage.SQLiteRepository, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := csvio.Parse(f)
	if err != nil {
		return err
	}
	n, err := repo.ImportTransactions(ctx, rows)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d transactions\n", n)
	return nil
}

func runExport(ctx context.Context, repo *storage.SQLiteRepository) error {
	rows, err := repo.ExportRows(ctx)
	if err != nil {
		return err
	}
	return csvio.Write(os.Stdout, rows)
}
