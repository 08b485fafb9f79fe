package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"strings"
	"sync"
	"testing"
	"time"
)

type nopDriver struct{}

func (d nopDriver) Open(name string) (driver.Conn, error) {
	return nopConn{}, nil
}

type nopConn struct{}

func (nopConn) Prepare(query string) (driver.Stmt, error) { return nopStmt{}, nil }
func (nopConn) Close() error                              { return nil }
func (nopConn) Begin() (driver.Tx, error)                 { return nopTx{}, nil }
func (nopConn) Ping(ctx context.Context) error            { return nil }

type nopStmt struct{}

func (nopStmt) Close() error                                    { return nil }
func (nopStmt) NumInput() int                                   { return -1 }
func (nopStmt) Exec(args []driver.Value) (driver.Result, error) { return nopResult{}, nil }
func (nopStmt) Query(args []driver.Value) (driver.Rows, error)  { return nopRows{}, nil }

type nopTx struct{}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

type nopResult struct{}

func (nopResult) LastInsertId() (int64, error) { return 0, nil }
func (nopResult) RowsAffected() (int64, error) { return 0, nil }

type nopRows struct{}

func (nopRows) Columns() []string              { return []string{} }
func (nopRows) Close() error                   { return nil }
func (nopRows) Next(dest []driver.Value) error { return driver.ErrBadConn }

var registerTestDriverOnce sync.Once

func withTestDriver(t *testing.T) *[]string {
	t.Helper()
	registerTestDriverOnce.Do(func() {
		sql.Register("dbtest", nopDriver{})
	})
	var drivers []string
	prev := openDB
	openDB = func(name, dsn string) (*sql.DB, error) {
		drivers = append(drivers, name)
		return sql.Open("dbtest", dsn)
	}
	t.Cleanup(func() { openDB = prev })
	return &drivers
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		wantDriver  string
		wantDialect Dialect
		wantDSN     string
	}{
		{name: "postgres", url: "postgres://u:p@localhost:5432/uw?sslmode=disable", wantDriver: "pgx", wantDialect: Postgres},
		{name: "postgresql", url: "postgresql://localhost/uw", wantDriver: "pgx", wantDialect: Postgres},
		{name: "sqlite", url: "sqlite://./data/runs.db", wantDriver: "sqlite", wantDialect: SQLite, wantDSN: "./data/runs.db"},
		{name: "sqlite memory", url: "sqlite::memory:", wantDriver: "sqlite", wantDialect: SQLite, wantDSN: ":memory:"},
		{name: "mysql", url: "mysql://root:secret@db:3306/uw", wantDriver: "mysql", wantDialect: MySQL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURL(tt.url)
			if err != nil {
				t.Fatalf("ParseURL: %v", err)
			}
			if got.Driver != tt.wantDriver || got.Dialect != tt.wantDialect {
				t.Fatalf("got %+v", got)
			}
			if tt.wantDSN != "" && got.DSN != tt.wantDSN {
				t.Fatalf("dsn = %q, want %q", got.DSN, tt.wantDSN)
			}
		})
	}
}

func TestParseURLMySQLDSN(t *testing.T) {
	got, err := ParseURL("mysql://root:secret@db/uw")
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	for _, part := range []string{"root:secret@tcp(db:3306)/uw", "parseTime=true"} {
		if !strings.Contains(got.DSN, part) {
			t.Fatalf("dsn %q missing %q", got.DSN, part)
		}
	}
}

func TestParseURLRejectsUnknown(t *testing.T) {
	for _, raw := range []string{"", "nocolon", "redis://localhost"} {
		if _, err := ParseURL(raw); err == nil {
			t.Fatalf("ParseURL(%q) expected error", raw)
		}
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM underwriting_runs WHERE request_id = ? AND status = ?"
	if got := Rebind(Postgres, q); got != "SELECT * FROM underwriting_runs WHERE request_id = $1 AND status = $2" {
		t.Fatalf("postgres rebind: %q", got)
	}
	if got := Rebind(MySQL, q); got != q {
		t.Fatalf("mysql rebind changed query: %q", got)
	}
}

func TestConnectAppliesEnvOverrides(t *testing.T) {
	drivers := withTestDriver(t)

	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("DB_MAX_IDLE_CONNS", "3")
	t.Setenv("DB_CONN_MAX_LIFETIME", "20m")
	t.Setenv("DB_CONN_MAX_IDLE_TIME", "45s")
	t.Setenv("DB_PING_TIMEOUT", "1s")

	opts := OptionsFromEnv(DefaultServerOptions())
	db, dialect, err := Connect(context.Background(), "postgres://localhost/uw", opts)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()

	if dialect != Postgres || len(*drivers) != 1 || (*drivers)[0] != "pgx" {
		t.Fatalf("unexpected dialect %q drivers %v", dialect, *drivers)
	}
	if stats := db.Stats(); stats.MaxOpenConnections != 7 {
		t.Fatalf("expected MaxOpenConnections=7, got %d", stats.MaxOpenConnections)
	}
	if opts.ConnMaxLifetime != 20*time.Minute || opts.ConnMaxIdleTime != 45*time.Second || opts.PingTimeout != time.Second {
		t.Fatalf("unexpected opts %+v", opts)
	}
}

func TestConnectPinsSQLiteToOneConnection(t *testing.T) {
	withTestDriver(t)
	db, dialect, err := Connect(context.Background(), "sqlite://runs.db", DefaultServerOptions())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()
	if dialect != SQLite {
		t.Fatalf("expected sqlite dialect, got %q", dialect)
	}
	if stats := db.Stats(); stats.MaxOpenConnections != 1 {
		t.Fatalf("expected single connection, got %d", stats.MaxOpenConnections)
	}
}
