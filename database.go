package main

import (
	"database/sql"
	"fmt"
	"strings"

	// database/sql drivers registered on import
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
)

// openDB opens the datastore named by dsn. DSNs starting with postgres:// or
// postgresql:// go through lib/pq; anything else is treated as a SQLite file
// path (":memory:" included). Returns the driver name alongside the handle so
// callers can pick the matching DDL.
func openDB(dsn string) (*sql.DB, string, error) {
	driver := driverSQLite
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = driverPostgres
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, "", err
	}

	return db, driver, nil
}

// initDB creates the posts, sessions, and settings tables and the title index
// if they do not already exist. Safe to run on every startup.
func initDB(db *sql.DB, driver string) error {
	schema, ok := ensureSchemas[driver]
	if !ok {
		return fmt.Errorf("unsupported driver %q", driver)
	}

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// provisionDB drops the posts table if present and recreates it empty, along
// with its title index. Any existing rows are lost; re-running it always
// leaves exactly one empty posts table.
func provisionDB(db *sql.DB, driver string) error {
	schema, ok := provisionSchemas[driver]
	if !ok {
		return fmt.Errorf("unsupported driver %q", driver)
	}

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("provisioning posts table: %w", err)
	}
	return nil
}

// seedDB inserts a few sample posts into an empty posts table.
func seedDB(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM posts").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	posts := []Post{
		{Title: "Hello", Text: "World"},
		{Title: "Hey now", Text: "Everything is awesome!"},
		{Title: "Football", Text: "Niners and stuff."},
	}

	for _, post := range posts {
		if _, err := createPost(db, post.Title, post.Text); err != nil {
			return err
		}
	}

	return nil
}
