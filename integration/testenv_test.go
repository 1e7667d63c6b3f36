package integration_test

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/Behzodbek19981230/lms-sub002/internal/auth"
	internaldb "github.com/Behzodbek19981230/lms-sub002/internal/db"
	"github.com/Behzodbek19981230/lms-sub002/internal/importer"
	"github.com/Behzodbek19981230/lms-sub002/internal/migrate"
	"github.com/Behzodbek19981230/lms-sub002/internal/store"
)

type testEnv struct {
	t       *testing.T
	db      *sql.DB
	store   *store.Postgres
	engine  *importer.Engine
	center  store.Center
	teacher store.User
}

func setupIntegrationEnv(t *testing.T) *testEnv {
	t.Helper()

	if strings.TrimSpace(os.Getenv("LMS_INTEGRATION")) != "1" {
		t.Skip("set LMS_INTEGRATION=1 to run integration tests")
	}

	testDSN := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if testDSN == "" {
		t.Skip("set TEST_DATABASE_URL to run integration tests")
	}

	dbName, err := databaseNameFromDSN(testDSN)
	if err != nil {
		t.Fatalf("parse TEST_DATABASE_URL: %v", err)
	}
	if !strings.Contains(strings.ToLower(dbName), "test") {
		t.Fatalf("refusing to run integration tests against non-test database name %q", dbName)
	}

	ctx := context.Background()
	db, err := internaldb.Open(ctx, testDSN)
	if err != nil {
		if strings.Contains(err.Error(), "SQLSTATE 3D000") {
			if createErr := ensureDatabaseExists(ctx, testDSN, dbName); createErr != nil {
				t.Fatalf("create test db %s: %v", dbName, createErr)
			}
			db, err = internaldb.Open(ctx, testDSN)
		}
		if err != nil {
			t.Fatalf("open test db: %v", err)
		}
	}

	if err := resetDatabase(ctx, db); err != nil {
		t.Fatalf("reset test db: %v", err)
	}

	if err := migrate.Run(ctx, db, migrationsDir(t)); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	pg := store.NewPostgres(db)
	env := &testEnv{
		t:      t,
		db:     db,
		store:  pg,
		engine: importer.NewEngine(pg, "student123"),
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	env.center = env.createCenter("Integration Center")
	env.teacher = env.createTeacher("t1", "Dilshod", "Rahimov")
	return env
}

func (e *testEnv) createCenter(name string) store.Center {
	e.t.Helper()
	var c store.Center
	err := e.db.QueryRowContext(context.Background(),
		`INSERT INTO centers (name, is_active) VALUES ($1, TRUE) RETURNING id, name, is_active`,
		name,
	).Scan(&c.ID, &c.Name, &c.IsActive)
	if err != nil {
		e.t.Fatalf("create center: %v", err)
	}
	return c
}

func (e *testEnv) createTeacher(username, firstName, lastName string) store.User {
	e.t.Helper()
	hash, err := auth.HashPassword("teacher-secret")
	if err != nil {
		e.t.Fatalf("hash teacher password: %v", err)
	}
	u, err := e.store.CreateUser(context.Background(), store.User{
		Username:     username,
		PasswordHash: hash,
		Role:         store.RoleTeacher,
		FirstName:    firstName,
		LastName:     lastName,
		IsActive:     true,
		CenterID:     e.center.ID,
	})
	if err != nil {
		e.t.Fatalf("create teacher: %v", err)
	}
	return u
}

func (e *testEnv) countRows(table string) int {
	e.t.Helper()
	var n int
	if err := e.db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		e.t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func resetDatabase(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`)
	return err
}

func migrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("resolve caller path")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", "migrations"))
}

func databaseNameFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	name := strings.TrimPrefix(u.Path, "/")
	if name == "" {
		return "", fmt.Errorf("missing database name in dsn")
	}
	return name, nil
}

func ensureDatabaseExists(ctx context.Context, testDSN, dbName string) error {
	adminDSN, err := withDatabaseName(testDSN, "postgres")
	if err != nil {
		return err
	}

	adminDB, err := internaldb.Open(ctx, adminDSN)
	if err != nil {
		return err
	}
	defer adminDB.Close()

	_, err = adminDB.ExecContext(ctx, fmt.Sprintf(`CREATE DATABASE %s`, quoteIdent(dbName)))
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return err
	}
	return nil
}

func withDatabaseName(dsn, dbName string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	u.Path = "/" + dbName
	return u.String(), nil
}

func quoteIdent(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}
