package domain

import "strings"

// MigrationID identifies a single schema migration.
type MigrationID string

// Migration is a pending schema migration with the statement text used for
// risk classification.
type Migration struct {
	ID        MigrationID `json:"id"`
	Statement string      `json:"statement"`
}

// RiskLevel classifies the blast radius of a migration.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// ClassifyStatement applies the fixed risk rule table:
// additive schema changes are LOW, adding a NOT NULL column with a default
// is MEDIUM, destructive or type-changing operations are HIGH. Statements
// that match no rule classify HIGH so that unreviewed operations cannot
// slip through as low risk.
func ClassifyStatement(stmt string) RiskLevel {
	s := strings.ToLower(strings.Join(strings.Fields(stmt), " "))

	switch {
	case strings.Contains(s, "drop table"),
		strings.Contains(s, "drop column"),
		strings.Contains(s, "alter column") && strings.Contains(s, "type"),
		strings.Contains(s, "modify column"),
		strings.Contains(s, "change column"):
		return RiskHigh
	case strings.Contains(s, "create table"),
		strings.Contains(s, "create index"),
		strings.Contains(s, "create unique index"):
		return RiskLow
	case strings.Contains(s, "not null") && strings.Contains(s, "default"):
		return RiskMedium
	case strings.Contains(s, "add column"):
		return RiskLow
	default:
		return RiskHigh
	}
}
