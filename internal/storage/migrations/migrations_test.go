package migrations

import (
	"strings"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	input := `-- header
CREATE TABLE a (x UInt8) ENGINE = Memory;

-- second
CREATE TABLE b (y String) ENGINE = Memory;
`
	stmts := splitStatements(input)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %v", len(stmts), stmts)
	}
	if !strings.HasPrefix(stmts[1], "CREATE TABLE b") {
		t.Errorf("unexpected second statement: %q", stmts[1])
	}
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	if err := validateNoSemicolonInStrings(`SELECT 'a''b'; SELECT 1;`); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := validateNoSemicolonInStrings(`SELECT 'a;b'`); err == nil {
		t.Error("expected error for semicolon in literal")
	}
}

func TestLoad(t *testing.T) {
	for dir, want := range map[string][]string{
		"postgres":   {"postgres/001_tracked_wallets.sql", "postgres/002_convergence_alerts.sql"},
		"clickhouse": {"clickhouse/001_asset_mentions.sql"},
	} {
		files, err := load(dir)
		if err != nil {
			t.Fatalf("load %s: %v", dir, err)
		}
		var got []string
		for _, m := range files {
			got = append(got, m.name)
			if err := validateNoSemicolonInStrings(m.sql); err != nil {
				t.Errorf("%s: %v", m.name, err)
			}
		}
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("%s: expected %v, got %v", dir, want, got)
		}
	}

	if _, err := load("missing"); err == nil {
		t.Error("expected error for unknown directory")
	}
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default@localhost:9000/tracker")
	if err != nil || db != "tracker" {
		t.Errorf("expected tracker, got %q (%v)", db, err)
	}
	if _, err := databaseFromDSN("clickhouse://localhost:9000"); err == nil {
		t.Error("expected error for dsn without database")
	}
}
