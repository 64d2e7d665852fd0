package db

import (
	"strings"
	"testing"
)

func TestMigrationNamesSorted(t *testing.T) {
	names, err := migrationNames()
	if err != nil {
		t.Fatalf("list migrations: %v", err)
	}
	if len(names) == 0 {
		t.Fatalf("expected embedded migrations")
	}
	if names[0] != "0001_init.sql" {
		t.Fatalf("first migration = %q", names[0])
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("migrations out of order: %v", names)
		}
	}
}

func TestInitMigrationCreatesCoreTables(t *testing.T) {
	body, err := migrationFS.ReadFile("migrations/0001_init.sql")
	if err != nil {
		t.Fatal(err)
	}
	for _, table := range []string{
		"realm.players", "realm.world_state", "realm.location_npcs",
		"realm.action_queues", "realm.religion_hqs", "realm.role_petitions",
		"realm.job_runs",
	} {
		if !strings.Contains(string(body), "CREATE TABLE IF NOT EXISTS "+table) {
			t.Fatalf("missing table %s", table)
		}
	}
}
