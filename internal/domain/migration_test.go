package domain_test

import (
	"testing"

	"github.com/shiplock/shiplock/internal/domain"
)

func TestClassifyStatement(t *testing.T) {
	cases := []struct {
		stmt string
		want domain.RiskLevel
	}{
		{"CREATE TABLE invoices (id INTEGER PRIMARY KEY)", domain.RiskLow},
		{"create table t (name text not null default '')", domain.RiskLow},
		{"ALTER TABLE users ADD COLUMN nickname TEXT", domain.RiskLow},
		{"CREATE INDEX idx_users_email ON users(email)", domain.RiskLow},
		{"CREATE UNIQUE INDEX idx_sub ON subs(plan)", domain.RiskLow},
		{"ALTER TABLE users ADD COLUMN plan TEXT NOT NULL DEFAULT 'free'", domain.RiskMedium},
		{"DROP TABLE legacy_sessions", domain.RiskHigh},
		{"ALTER TABLE users DROP COLUMN ssn", domain.RiskHigh},
		{"ALTER TABLE users ALTER COLUMN age TYPE bigint", domain.RiskHigh},
		{"ALTER TABLE users MODIFY COLUMN age BIGINT", domain.RiskHigh},
		{"TRUNCATE audit_log", domain.RiskHigh}, // unmatched statements classify HIGH
	}
	for _, c := range cases {
		if got := domain.ClassifyStatement(c.stmt); got != c.want {
			t.Errorf("ClassifyStatement(%q) = %s, want %s", c.stmt, got, c.want)
		}
	}
}
