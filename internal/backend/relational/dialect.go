package relational

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/hansduf/WA-Integrasi-sub000/internal/backend"
	"github.com/hansduf/WA-Integrasi-sub000/internal/errors"
)

// Dialect captures everything that differs between supported SQL engines:
// driver name, DSN shape, identifier quoting, pagination clause, bind
// placeholder style and the schema discovery statements.
type Dialect struct {
	Name   string
	Driver string

	quoteIdent  func(string) string
	paginate    func(query string, limit int) string
	placeholder func(ordinal int) string
	buildDSN    func(cfg backend.Config) (string, error)

	listTablesSQL string
	// listColumnsSQL takes the table name as its only bind parameter.
	listColumnsSQL string
}

// QuoteIdent quotes one identifier segment for this dialect.
func (d *Dialect) QuoteIdent(ident string) string { return d.quoteIdent(ident) }

// Paginate appends this dialect's row-limit clause to query.
func (d *Dialect) Paginate(query string, limit int) string { return d.paginate(query, limit) }

// Placeholder returns the bind marker for the 1-based ordinal.
func (d *Dialect) Placeholder(ordinal int) string { return d.placeholder(ordinal) }

// BuildDSN renders the driver connection string from the opaque config.
func (d *Dialect) BuildDSN(cfg backend.Config) (string, error) { return d.buildDSN(cfg) }

var mysqlDialect = &Dialect{
	Name:   "mysql",
	Driver: "mysql",
	quoteIdent: func(ident string) string {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	},
	paginate: func(query string, limit int) string {
		return fmt.Sprintf("%s LIMIT %d", query, limit)
	},
	placeholder: func(int) string { return "?" },
	buildDSN: func(cfg backend.Config) (string, error) {
		host := cfg["host"]
		if host == "" {
			return "", errors.NewValidation("host", "required for mysql data sources")
		}
		port := cfg["port"]
		if port == "" {
			port = "3306"
		}
		database := cfg["database"]
		if database == "" {
			return "", errors.NewValidation("database", "required for mysql data sources")
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
			cfg["username"], cfg["password"], host, port, database), nil
	},
	listTablesSQL: `SELECT table_name FROM information_schema.tables
		WHERE table_schema = DATABASE() ORDER BY table_name`,
	listColumnsSQL: `SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position`,
}

var oracleDialect = &Dialect{
	Name:   "oracle",
	Driver: "oracle",
	quoteIdent: func(ident string) string {
		return `"` + strings.ReplaceAll(strings.ToUpper(ident), `"`, `""`) + `"`
	},
	paginate: func(query string, limit int) string {
		return fmt.Sprintf("%s FETCH FIRST %d ROWS ONLY", query, limit)
	},
	placeholder: func(ordinal int) string { return fmt.Sprintf(":%d", ordinal) },
	buildDSN: func(cfg backend.Config) (string, error) {
		host := cfg["host"]
		if host == "" {
			return "", errors.NewValidation("host", "required for oracle data sources")
		}
		port := cfg["port"]
		if port == "" {
			port = "1521"
		}
		service := cfg["service"]
		if service == "" {
			service = cfg["database"]
		}
		if service == "" {
			return "", errors.NewValidation("service", "required for oracle data sources")
		}
		u := url.URL{
			Scheme: "oracle",
			User:   url.UserPassword(cfg["username"], cfg["password"]),
			Host:   host + ":" + port,
			Path:   "/" + service,
		}
		return u.String(), nil
	},
	listTablesSQL: `SELECT table_name FROM user_tables ORDER BY table_name`,
	listColumnsSQL: `SELECT column_name, data_type, nullable
		FROM user_tab_columns WHERE table_name = :1
		ORDER BY column_id`,
}

// DialectByName resolves a dialect name from a data-source config.
func DialectByName(name string) (*Dialect, error) {
	switch strings.ToLower(name) {
	case "mysql":
		return mysqlDialect, nil
	case "oracle":
		return oracleDialect, nil
	default:
		return nil, errors.NewValidation("dialect", fmt.Sprintf("unsupported dialect %q", name))
	}
}
