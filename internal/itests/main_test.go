package itests

import (
	"context"
	"database/sql"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"PagedAPI/internal/config"
	"PagedAPI/internal/db"
	"PagedAPI/internal/handler"
	"PagedAPI/internal/listing"
	"PagedAPI/internal/resource"
	"PagedAPI/internal/router"
)

// testBaseURL stays empty unless ITESTS=1 and Postgres is reachable; the
// HTTP tests skip in that case.
var testBaseURL string

func TestMain(m *testing.M) {
	if os.Getenv("ITESTS") != "1" {
		os.Exit(m.Run())
	}

	cfg := config.LoadConfig()
	root, err := config.FindRepoRoot()
	if err != nil {
		fmt.Fprintln(os.Stderr, "repo root not found:", err)
		os.Exit(1)
	}

	testDSN, teardown, err := SetupTestDB(cfg.PostgresDSN, filepath.Join(root, "db", "migrations"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "setup test DB failed:", err)
		os.Exit(1)
	}

	code := func() int {
		pg, err := db.OpenPostgres(context.Background(), testDSN)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open test DB failed:", err)
			return 1
		}
		defer pg.Close()
		if err := seed(pg); err != nil {
			fmt.Fprintln(os.Stderr, "seed failed:", err)
			return 1
		}

		registry, err := resource.LoadDir(filepath.Join(root, "db", "resources"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "load resources failed:", err)
			return 1
		}
		registry.Bind(pg)

		srv := httptest.NewServer(router.InitRoutes(cfg, &handler.Collection{
			Registry: registry,
			Paging:   cfg.Paging,
			Lister:   &listing.Lister{HrefPrefix: "/api"},
		}, nil))
		defer srv.Close()
		testBaseURL = srv.URL
		return m.Run()
	}()

	if err := teardown(); err != nil {
		fmt.Fprintln(os.Stderr, "drop test DB failed:", err)
	}
	os.Exit(code)
}

func seed(pg *sql.DB) error {
	_, err := pg.Exec(`
		TRUNCATE people RESTART IDENTITY;
		INSERT INTO people (name, status, age, team, position) VALUES
			('Ann',   'active',   31, 'core',  3),
			('Bob',   'active',   25, 'core',  1),
			('Cid',   'inactive', 47, 'infra', 2),
			('Dee',   'active',   19, 'infra', 5),
			('Eve',   'pending',  38, 'core',  4);
	`)
	return err
}
