package db

import (
	"context"
	"testing"
)

func TestConnectSQLiteInMemory(t *testing.T) {
	database, err := Connect("sqlite", "file:db_connect_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer database.Close()

	if database.Driver != "sqlite" {
		t.Fatalf("unexpected driver %s", database.Driver)
	}
	if err := database.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestConnectRejectsUnknownDriver(t *testing.T) {
	if _, err := Connect("mysql", "dsn"); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
	if _, err := Connect("postgres", ""); err == nil {
		t.Fatalf("expected missing dsn error")
	}
}

func TestNilDatabaseIsSafe(t *testing.T) {
	var database *Database
	if err := database.Close(); err != nil {
		t.Fatalf("close nil: %v", err)
	}
	if err := database.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping on nil database to fail")
	}
}
