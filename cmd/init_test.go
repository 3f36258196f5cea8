package cmd

import "testing"

func TestRedactDatabaseURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"facegate.db", "facegate.db"},
		{"sqlite:///var/lib/facegate.db", "sqlite:///var/lib/facegate.db"},
		{"postgres://facegate:s3cret@db:5432/facegate?sslmode=disable", "postgres://***@db:5432/facegate?sslmode=disable"},
		{"postgres://db:5432/facegate", "postgres://db:5432/facegate"},
		{"mysql://root:p@ss@tcp(db:3306)/facegate", "mysql://***@tcp(db:3306)/facegate"},
		{"mariadb://user:pw@tcp(db)/facegate?parseTime=true", "mariadb://***@tcp(db)/facegate?parseTime=true"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := redactDatabaseURL(tt.in); got != tt.want {
				t.Errorf("redactDatabaseURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
