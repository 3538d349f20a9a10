package integrations

import "testing"

func TestValidateMySQLIdentifier(t *testing.T) {
	cases := []struct {
		name    string
		ident   string
		wantErr bool
	}{
		{"simple table name", "users", false},
		{"underscore prefix", "_events", false},
		{"empty", "", true},
		{"leading digit", "1table", true},
		{"contains space", "my table", true},
		{"sql keyword", "select", true},
		{"sql keyword mixed case", "DROP", true},
		{"quote injection attempt", "users`; DROP TABLE x; --", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateMySQLIdentifier(tc.ident)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error for %q", tc.ident)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error for %q: %v", tc.ident, err)
			}
		})
	}
}

func TestQuoteIdentifierMySQL(t *testing.T) {
	if got := quoteIdentifierMySQL("users"); got != "`users`" {
		t.Fatalf("got %q", got)
	}
	if got := quoteIdentifierMySQL("weird`name"); got != "`weird``name`" {
		t.Fatalf("expected backtick escaping, got %q", got)
	}
}

func TestGetStrAndGetInt(t *testing.T) {
	m := map[string]interface{}{"name": "x", "count": float64(3), "port": 21}
	if got := getStr(m, "name", "fallback"); got != "x" {
		t.Fatalf("got %q", got)
	}
	if got := getStr(m, "missing", "fallback"); got != "fallback" {
		t.Fatalf("got %q", got)
	}
	if got := getInt(m, "count", 0); got != 3 {
		t.Fatalf("got %d", got)
	}
	if got := getInt(m, "port", 0); got != 21 {
		t.Fatalf("got %d", got)
	}
	if got := getInt(m, "missing", 99); got != 99 {
		t.Fatalf("got %d", got)
	}
}
