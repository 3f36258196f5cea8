package sqlstore

import (
	"reflect"
	"testing"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		numbered bool
		want     string
	}{
		{"question marks kept", "SELECT * FROM t WHERE a = ? AND b = ?", false, "SELECT * FROM t WHERE a = ? AND b = ?"},
		{"numbered", "SELECT * FROM t WHERE a = ? AND b = ?", true, "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{"no placeholders", "SELECT 1", true, "SELECT 1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Rebind(tc.query, tc.numbered); got != tc.want {
				t.Errorf("Rebind(%q) = %q, want %q", tc.query, got, tc.want)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	script := `
		CREATE TABLE a (id INTEGER);

		CREATE INDEX a_idx ON a(id);
	`
	got := splitStatements(script)
	want := []string{"CREATE TABLE a (id INTEGER)", "CREATE INDEX a_idx ON a(id)"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitStatements = %q, want %q", got, want)
	}
}
