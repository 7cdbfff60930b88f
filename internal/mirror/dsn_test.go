package mirror

import "testing"

func TestParseDSN(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantDriver  string
		wantDSN     string
		wantDialect string
		wantErr     bool
	}{
		{"postgres url", "postgres://u:p@db:5432/wsnap?sslmode=disable", "pgx", "postgres://u:p@db:5432/wsnap?sslmode=disable", DialectPostgres, false},
		{"postgresql scheme", "postgresql://db/wsnap", "pgx", "postgresql://db/wsnap", DialectPostgres, false},
		{"keyword dsn", "host=localhost user=app dbname=wsnap", "pgx", "host=localhost user=app dbname=wsnap", DialectPostgres, false},
		{"sqlite file", "sqlite:file:m.db?cache=shared", "sqlite3", "file:m.db?cache=shared", DialectSQLite, false},
		{"sqlite upper prefix", "SQLITE::memory:", "sqlite3", ":memory:", DialectSQLite, false},
		{"sqlite default", "sqlite:", "sqlite3", "file:wsnap-mirror.sqlite?_pragma=busy_timeout(5000)", DialectSQLite, false},
		{"empty", "  ", "", "", "", true},
		{"mysql", "mysql://db/wsnap", "", "", "", true},
		{"garbage", "not a dsn", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver, dsn, dialect, err := parseDSN(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseDSN(%q) expected error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDSN(%q): %v", tt.raw, err)
			}
			if driver != tt.wantDriver || dsn != tt.wantDSN || dialect != tt.wantDialect {
				t.Errorf("parseDSN(%q) = (%q, %q, %q), want (%q, %q, %q)",
					tt.raw, driver, dsn, dialect, tt.wantDriver, tt.wantDSN, tt.wantDialect)
			}
		})
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE b = ? AND c = ?"
	if got := rebind(DialectSQLite, q); got != q {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
	want := "SELECT a FROM t WHERE b = $1 AND c = $2"
	if got := rebind(DialectPostgres, q); got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}
}

func TestValidTable(t *testing.T) {
	for name, want := range map[string]bool{
		"workspaces":        true,
		"_ws2":              true,
		"2ws":               false,
		"":                  false,
		"ws; DROP TABLE x":  false,
		"public.workspaces": false,
	} {
		if got := ValidTable(name); got != want {
			t.Errorf("ValidTable(%q) = %v, want %v", name, got, want)
		}
	}
}
