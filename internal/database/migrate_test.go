package database

import (
	"strings"
	"testing"
)

func TestMigrationNamesSorted(t *testing.T) {
	for _, dir := range []string{"migrations/mysql", "migrations/postgres"} {
		names, err := migrationNames(dir)
		if err != nil {
			t.Fatalf("%s: %v", dir, err)
		}
		if len(names) == 0 {
			t.Fatalf("%s: no migrations embedded", dir)
		}
		for i := 1; i < len(names); i++ {
			if names[i-1] >= names[i] {
				t.Fatalf("%s: names not sorted: %v", dir, names)
			}
		}
	}
}

func TestMySQLMigrationsSplitIntoTables(t *testing.T) {
	body, err := migrationFiles.ReadFile("migrations/mysql/001_init.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	stmts := SplitStatements(string(body))
	if len(stmts) != 3 {
		t.Fatalf("statements = %d, want 3", len(stmts))
	}
	for _, table := range []string{"`transaction`", "seat", "transaction_seat"} {
		found := false
		for _, s := range stmts {
			if strings.HasPrefix(s, "CREATE TABLE IF NOT EXISTS "+table+" ") {
				found = true
			}
		}
		if !found {
			t.Fatalf("no CREATE TABLE for %s", table)
		}
	}
}

func TestMySQLDSN(t *testing.T) {
	cfg := MySQLConfig{User: "root", Host: "127.0.0.1", Port: "3306", Name: "seats"}
	if got, want := cfg.DSN(), "root@tcp(127.0.0.1:3306)/seats?charset=utf8mb4&parseTime=true&loc=UTC"; got != want {
		t.Fatalf("dsn = %q, want %q", got, want)
	}
	cfg.Pass = "pw"
	if !strings.HasPrefix(cfg.DSN(), "root:pw@tcp(") {
		t.Fatalf("dsn = %q", cfg.DSN())
	}
}
