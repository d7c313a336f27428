// Command migrate applies the event log's goose migrations against
// EVENT_LOG_DSN. Grounded on cmd/scheduler's direct sql.Open("pgx", ...)
// style rather than pgxpool, since goose drives *sql.DB.
package main

import (
	"database/sql"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose"

	cfgpkg "github.com/sirclappington/enq/internal/config"
)

func main() {
	cfg := cfgpkg.Load()
	if cfg.EventLogDSN == "" {
		log.Fatal("EVENT_LOG_DSN must be set to run migrations")
	}

	db, err := sql.Open("pgx", cfg.EventLogDSN)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatal(err)
	}
	if err := goose.Up(db, "internal/eventlog/migrations"); err != nil {
		log.Fatal(err)
	}
}
