// Command migrate applies the SQL files under migrations/ in lexical order.
// Applied files are recorded in newsletter_schema_migrations and skipped on
// the next run, so the command is safe to re-run on deploy.
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"
)

const trackingTable = `CREATE TABLE IF NOT EXISTS newsletter_schema_migrations (
	filename   TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	dir := "migrations"
	listOnly := false
	for _, a := range os.Args[1:] {
		if a == "--list" {
			listOnly = true
		} else {
			dir = a
		}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("ping: %v", err)
	}

	if listOnly {
		listApplied(db)
		return
	}

	if _, err := db.Exec(trackingTable); err != nil {
		log.Fatalf("create tracking table: %v", err)
	}

	applied, err := appliedSet(db)
	if err != nil {
		log.Fatalf("load applied migrations: %v", err)
	}

	files, err := pendingFiles(dir, applied)
	if err != nil {
		log.Fatalf("scan %s: %v", dir, err)
	}
	if len(files) == 0 {
		log.Println("Nothing to apply")
		return
	}

	for _, f := range files {
		if err := applyOne(db, dir, f); err != nil {
			log.Fatalf("%s: %v", f, err)
		}
		log.Printf("%s ... OK", f)
	}
	log.Printf("Applied %d migration(s)", len(files))
}

func listApplied(db *sql.DB) {
	rows, err := db.Query(`SELECT filename, applied_at FROM newsletter_schema_migrations ORDER BY filename`)
	if err != nil {
		log.Fatal(err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var filename, appliedAt string
		rows.Scan(&filename, &appliedAt)
		fmt.Printf("  %s  %s\n", filename, appliedAt)
		n++
	}
	fmt.Printf("Total: %d applied\n", n)
}

func appliedSet(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query(`SELECT filename FROM newsletter_schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var filename string
		if err := rows.Scan(&filename); err != nil {
			return nil, err
		}
		applied[filename] = true
	}
	return applied, rows.Err()
}

func pendingFiles(dir string, applied map[string]bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		if applied[e.Name()] {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}

// applyOne runs a single migration and its bookkeeping row in one
// transaction, so a failed migration leaves no trace.
func applyOne(db *sql.DB, dir, filename string) error {
	data, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(string(data)); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec(`INSERT INTO newsletter_schema_migrations (filename) VALUES ($1)`, filename); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
