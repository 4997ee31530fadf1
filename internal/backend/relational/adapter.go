// Package relational provides the backend adapter for SQL databases. One
// adapter implementation covers every supported dialect; the Dialect table
// isolates identifier quoting, pagination and bind placeholder differences.
package relational

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/xwb1989/sqlparser"

	"github.com/hansduf/WA-Integrasi-sub000/internal/backend"
	"github.com/hansduf/WA-Integrasi-sub000/internal/errors"

	_ "github.com/go-sql-driver/mysql" // mysql driver
	_ "github.com/sijms/go-ora/v2"     // oracle driver
)

const (
	defaultMaxOpenConns = 10
	defaultMaxIdleConns = 5
	defaultConnLifetime = 5 * time.Minute
	defaultMaxRows      = 500
)

// Adapter executes queries against one relational database through a
// pooled database/sql handle.
type Adapter struct {
	mu      sync.RWMutex
	db      *sql.DB
	dialect *Dialect
	maxRows int
}

// New creates an unconnected relational adapter.
func New() backend.Adapter {
	return &Adapter{}
}

func (a *Adapter) open(config backend.Config) (*sql.DB, *Dialect, int, error) {
	dialectName := config["dialect"]
	if dialectName == "" {
		dialectName = "mysql"
	}
	dialect, err := DialectByName(dialectName)
	if err != nil {
		return nil, nil, 0, err
	}

	dsn, err := dialect.BuildDSN(config)
	if err != nil {
		return nil, nil, 0, err
	}

	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("open %s connection: %w", dialect.Name, err)
	}

	db.SetMaxOpenConns(intConfig(config, "maxOpenConns", defaultMaxOpenConns))
	db.SetMaxIdleConns(intConfig(config, "maxIdleConns", defaultMaxIdleConns))
	db.SetConnMaxLifetime(defaultConnLifetime)

	maxRows := intConfig(config, "maxRows", defaultMaxRows)
	return db, dialect, maxRows, nil
}

func intConfig(config backend.Config, key string, fallback int) int {
	if raw := config[key]; raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// Connect opens and verifies the pooled connection.
func (a *Adapter) Connect(ctx context.Context, config backend.Config) error {
	db, dialect, maxRows, err := a.open(config)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("%s ping failed: %w", dialect.Name, err)
	}

	a.mu.Lock()
	if a.db != nil {
		a.db.Close()
	}
	a.db = db
	a.dialect = dialect
	a.maxRows = maxRows
	a.mu.Unlock()
	return nil
}

// Disconnect closes the pooled connection. Idempotent.
func (a *Adapter) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// TestConnection probes the database described by config with a fresh,
// short-lived handle. The live connection, if any, is untouched.
func (a *Adapter) TestConnection(ctx context.Context, config backend.Config) backend.TestResult {
	db, dialect, _, err := a.open(config)
	if err != nil {
		return backend.TestResult{OK: false, Message: err.Error()}
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return backend.TestResult{OK: false, Message: err.Error()}
	}
	return backend.TestResult{OK: true, Message: fmt.Sprintf("%s connection ok", dialect.Name)}
}

func (a *Adapter) handle() (*sql.DB, *Dialect, int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.db == nil {
		return nil, nil, 0, errors.NewValidationMsg("relational adapter is not connected")
	}
	return a.db, a.dialect, a.maxRows, nil
}

// DiscoverSchema lists tables and their columns through the dialect's
// catalog queries.
func (a *Adapter) DiscoverSchema(ctx context.Context) (*backend.Schema, error) {
	db, dialect, _, err := a.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, dialect.listTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	schema := backend.EmptySchema()
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		schema.Tables = append(schema.Tables, table)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	for _, table := range schema.Tables {
		fields, err := a.tableFields(ctx, db, dialect, table)
		if err != nil {
			return nil, err
		}
		schema.Fields[table] = fields
	}
	return schema, nil
}

func (a *Adapter) tableFields(ctx context.Context, db *sql.DB, dialect *Dialect, table string) ([]backend.Field, error) {
	rows, err := db.QueryContext(ctx, dialect.listColumnsSQL, table)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	defer rows.Close()

	fields := make([]backend.Field, 0)
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		fields = append(fields, backend.Field{
			Name:     name,
			DataType: dataType,
			// mysql reports YES/NO, oracle reports Y/N.
			Nullable: strings.HasPrefix(strings.ToUpper(nullable), "Y"),
		})
	}
	return fields, rows.Err()
}

// ExecuteQuery binds params into query and runs it. Only SELECT statements
// are accepted; values are always bound, never interpolated.
func (a *Adapter) ExecuteQuery(ctx context.Context, query string, params backend.Params) (*backend.QueryResult, error) {
	db, dialect, maxRows, err := a.handle()
	if err != nil {
		return nil, err
	}

	if err := guardSelect(query); err != nil {
		return nil, err
	}

	finalQuery, args, err := bindNamed(query, params, dialect)
	if err != nil {
		return nil, err
	}
	if limit, ok := paramInt(params, "limit"); ok {
		finalQuery = dialect.Paginate(finalQuery, limit)
	}

	rows, err := db.QueryContext(ctx, finalQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("%s query failed: %w", dialect.Name, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cancelled during row iteration: %w", err)
		}
		if len(resultRows) >= maxRows {
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		resultRows = append(resultRows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return &backend.QueryResult{
		Columns:    columns,
		Rows:       resultRows,
		RowCount:   len(resultRows),
		SQLPreview: finalQuery,
		Metadata:   map[string]string{"dialect": dialect.Name},
	}, nil
}

func paramInt(params backend.Params, key string) (int, bool) {
	switch v := params[key].(type) {
	case int:
		return v, v > 0
	case int64:
		return int(v), v > 0
	case float64:
		return int(v), v > 0
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil && n > 0
	default:
		return 0, false
	}
}

// guardSelect rejects anything but a single SELECT statement. The parser
// does not understand every dialect extension (Oracle's FETCH FIRST among
// them), so a parse failure falls back to a keyword check instead of
// rejecting the query outright.
func guardSelect(query string) error {
	stmt, err := sqlparser.Parse(query)
	if err != nil {
		// Dialect constructs the parser does not know, like FETCH FIRST,
		// fall through to a keyword check. The statement still must be a
		// single SELECT; a separator would smuggle a second statement past
		// the parser.
		trimmed := strings.ToUpper(strings.TrimSpace(query))
		if strings.HasPrefix(trimmed, "SELECT") && !hasStatementSeparator(query) {
			return nil
		}
		return errors.NewValidationMsg("only SELECT statements are allowed on relational data sources")
	}
	switch stmt.(type) {
	case *sqlparser.Select, *sqlparser.Union:
		return nil
	default:
		return errors.NewValidationMsg("only SELECT statements are allowed on relational data sources")
	}
}

// hasStatementSeparator reports a semicolon outside string literals and
// quoted identifiers. One trailing semicolon is tolerated.
func hasStatementSeparator(query string) bool {
	query = strings.TrimSuffix(strings.TrimSpace(query), ";")
	var inQuote rune
	for _, r := range query {
		if inQuote != 0 {
			if r == inQuote {
				inQuote = 0
			}
			continue
		}
		switch r {
		case '\'', '"', '`':
			inQuote = r
		case ';':
			return true
		}
	}
	return false
}

// bindNamed rewrites :name markers into the dialect's bind placeholders and
// collects the matching values from params in order of appearance. Markers
// inside string literals are left alone.
func bindNamed(query string, params backend.Params, dialect *Dialect) (string, []any, error) {
	var (
		b       strings.Builder
		args    []any
		inQuote rune
		ordinal int
	)
	runes := []rune(query)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if inQuote != 0 {
			b.WriteRune(r)
			if r == inQuote {
				inQuote = 0
			}
			continue
		}
		switch {
		case r == '\'' || r == '"' || r == '`':
			inQuote = r
			b.WriteRune(r)
		case r == ':' && i+1 < len(runes) && isIdentStart(runes[i+1]):
			j := i + 1
			for j < len(runes) && isIdentPart(runes[j]) {
				j++
			}
			name := string(runes[i+1 : j])
			value, ok := params[name]
			if !ok {
				return "", nil, errors.NewValidation(name, "query references a parameter that was not supplied")
			}
			ordinal++
			b.WriteString(dialect.Placeholder(ordinal))
			args = append(args, value)
			i = j - 1
		default:
			b.WriteRune(r)
		}
	}
	if inQuote != 0 {
		return "", nil, errors.NewValidationMsg("unterminated string literal in query")
	}
	return b.String(), args, nil
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// Verify Adapter implements the capability set.
var _ backend.Adapter = (*Adapter)(nil)
