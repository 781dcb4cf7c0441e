package logstore

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"logwatch-backend/internal/storage"
)

type dialect struct {
	name        string
	driver      string
	placeholder storage.Placeholder
	quote       func(string) string
	// limit appends a row limit after the ORDER BY clause, binding n as arg.
	limit func(argIndex int) string
	// page is limit plus a row offset; the limit arg is bound before the offset.
	page func(limitIndex, offsetIndex int) string
}

var (
	postgresDialect = dialect{
		name:        "postgres",
		driver:      "postgres",
		placeholder: storage.DollarPlaceholder,
		quote:       func(s string) string { return `"` + s + `"` },
		limit:       func(i int) string { return fmt.Sprintf(" LIMIT $%d", i) },
		page:        func(l, o int) string { return fmt.Sprintf(" LIMIT $%d OFFSET $%d", l, o) },
	}
	mysqlDialect = dialect{
		name:        "mysql",
		driver:      "mysql",
		placeholder: func(int) string { return "?" },
		quote:       func(s string) string { return "`" + s + "`" },
		limit:       func(int) string { return " LIMIT ?" },
		page:        func(int, int) string { return " LIMIT ? OFFSET ?" },
	}
	mssqlDialect = dialect{
		name:        "mssql",
		driver:      "sqlserver",
		placeholder: func(n int) string { return fmt.Sprintf("@p%d", n) },
		quote:       func(s string) string { return "[" + s + "]" },
		limit:       func(i int) string { return fmt.Sprintf(" OFFSET 0 ROWS FETCH NEXT @p%d ROWS ONLY", i) },
		page:        func(l, o int) string { return fmt.Sprintf(" OFFSET @p%d ROWS FETCH NEXT @p%d ROWS ONLY", o, l) },
	}
)

func dialectFor(storeType string) (dialect, error) {
	switch strings.ToLower(strings.TrimSpace(storeType)) {
	case "postgres", "postgresql":
		return postgresDialect, nil
	case "mysql":
		return mysqlDialect, nil
	case "mssql", "sqlserver":
		return mssqlDialect, nil
	case "":
		return dialect{}, errors.New("log store type is required")
	default:
		return dialect{}, fmt.Errorf("unsupported log store type %q", storeType)
	}
}

func (d dialect) dsn(cfg Config) string {
	switch d.name {
	case "mysql":
		if cfg.Port == 0 {
			cfg.Port = 3306
		}
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC&clientFoundRows=true", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
		sslMode := strings.ToLower(strings.TrimSpace(cfg.SSLMode))
		if sslMode == "disable" {
			dsn += "&tls=false"
		} else if sslMode != "" {
			dsn += "&tls=true"
		}
		return dsn
	case "mssql":
		if cfg.Port == 0 {
			cfg.Port = 1433
		}
		encrypt := strings.TrimSpace(cfg.Encrypt)
		if encrypt == "" {
			encrypt = "true"
		}
		if strings.EqualFold(cfg.SSLMode, "disable") {
			encrypt = "disable"
		}
		return fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s&encrypt=%s",
			url.QueryEscape(cfg.User), url.QueryEscape(cfg.Password), cfg.Host, cfg.Port, url.QueryEscape(cfg.Database), encrypt)
	default:
		if cfg.Port == 0 {
			cfg.Port = 5432
		}
		sslMode := strings.ToLower(strings.TrimSpace(cfg.SSLMode))
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, sslMode)
	}
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// quoteQualified validates a possibly schema-qualified identifier and quotes
// each segment.
func quoteQualified(ident string, maxSegments int, quote func(string) string) (string, error) {
	trimmed := strings.TrimSpace(ident)
	if trimmed == "" {
		return "", errors.New("identifier is empty")
	}
	parts := strings.Split(trimmed, ".")
	if maxSegments > 0 && len(parts) > maxSegments {
		return "", fmt.Errorf("identifier %q has too many segments", ident)
	}
	quoted := make([]string, len(parts))
	for i, part := range parts {
		if !identPattern.MatchString(part) {
			return "", fmt.Errorf("identifier segment %q is invalid", part)
		}
		quoted[i] = quote(part)
	}
	return strings.Join(quoted, "."), nil
}
