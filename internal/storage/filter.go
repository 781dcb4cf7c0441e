package storage

import (
	"fmt"
	"strings"
)

// Placeholder renders the n-th (1-based) bind parameter for a SQL dialect.
type Placeholder func(n int) string

func DollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

// BuildLogWhere renders the WHERE clause for a LogFilter. The returned clause
// is empty when the filter has no constraints.
func BuildLogWhere(filter LogFilter, ph Placeholder) (string, []any) {
	clauses := []string{}
	args := []any{}
	add := func(column string, op string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s %s %s", column, op, ph(len(args))))
	}
	if filter.Type != "" {
		add("type", "=", filter.Type)
	}
	if filter.Level != "" {
		add("level", "=", filter.Level)
	}
	if filter.ProjectID != "" {
		add("project_id", "=", filter.ProjectID)
	}
	if filter.Fingerprint != "" {
		add("fingerprint", "=", filter.Fingerprint)
	}
	if !filter.Since.IsZero() {
		add("ts", ">=", filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		add("ts", "<", filter.Until.UTC())
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// OrderClause maps a LogOrder to SQL; unknown values fall back to newest first.
func OrderClause(order LogOrder) string {
	switch order {
	case OrderTimestampAsc:
		return " ORDER BY ts ASC"
	case OrderSeverityDesc:
		return " ORDER BY severity_score DESC, ts DESC"
	default:
		return " ORDER BY ts DESC"
	}
}
