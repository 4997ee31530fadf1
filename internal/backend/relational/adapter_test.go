package relational

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hansduf/WA-Integrasi-sub000/internal/backend"
	"github.com/hansduf/WA-Integrasi-sub000/internal/errors"
)

func TestGuardSelect(t *testing.T) {
	allowed := []string{
		"SELECT * FROM sensor_data",
		"select temp from readings where id = 1",
		"SELECT a FROM t1 UNION SELECT a FROM t2",
		// The parser chokes on FETCH FIRST; the keyword fallback admits it.
		"SELECT * FROM readings FETCH FIRST 5 ROWS ONLY",
		"SELECT * FROM readings FETCH FIRST 5 ROWS ONLY;",
		"SELECT * FROM notes WHERE body = 'a;b' FETCH FIRST 1 ROWS ONLY",
	}
	for _, q := range allowed {
		if err := guardSelect(q); err != nil {
			t.Fatalf("guardSelect(%q): %v", q, err)
		}
	}

	rejected := []string{
		"UPDATE readings SET temp = 0",
		"DELETE FROM readings",
		"INSERT INTO readings VALUES (1)",
		"DROP TABLE readings",
		// Stacked statements must not slip through the keyword fallback.
		"SELECT 1 FETCH FIRST 1 ROWS ONLY; DROP TABLE readings",
		"SELECT * FROM readings FETCH FIRST 5 ROWS ONLY; DELETE FROM readings;",
	}
	for _, q := range rejected {
		if err := guardSelect(q); !errors.IsValidation(err) {
			t.Fatalf("guardSelect(%q): expected validation error, got %v", q, err)
		}
	}
}

// TestBindNamed verifies :name markers become dialect placeholders with
// values collected in order of appearance.
func TestBindNamed(t *testing.T) {
	mysql, _ := DialectByName("mysql")
	oracle, _ := DialectByName("oracle")

	query := "SELECT * FROM readings WHERE unit = :unit AND temp > :minTemp"
	params := backend.Params{"unit": "boiler-1", "minTemp": 80}

	got, args, err := bindNamed(query, params, mysql)
	if err != nil {
		t.Fatalf("bind mysql: %v", err)
	}
	if got != "SELECT * FROM readings WHERE unit = ? AND temp > ?" {
		t.Fatalf("mysql rewrite: %q", got)
	}
	if len(args) != 2 || args[0] != "boiler-1" || args[1] != 80 {
		t.Fatalf("mysql args: %v", args)
	}

	got, args, err = bindNamed(query, params, oracle)
	if err != nil {
		t.Fatalf("bind oracle: %v", err)
	}
	if got != "SELECT * FROM readings WHERE unit = :1 AND temp > :2" {
		t.Fatalf("oracle rewrite: %q", got)
	}
	if len(args) != 2 {
		t.Fatalf("oracle args: %v", args)
	}
}

func TestBindNamed_IgnoresMarkersInLiterals(t *testing.T) {
	mysql, _ := DialectByName("mysql")
	got, args, err := bindNamed("SELECT ':skip' AS note FROM t WHERE id = :id",
		backend.Params{"id": 9}, mysql)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if got != "SELECT ':skip' AS note FROM t WHERE id = ?" {
		t.Fatalf("literal was rewritten: %q", got)
	}
	if len(args) != 1 || args[0] != 9 {
		t.Fatalf("args: %v", args)
	}
}

func TestBindNamed_MissingParam(t *testing.T) {
	mysql, _ := DialectByName("mysql")
	_, _, err := bindNamed("SELECT * FROM t WHERE id = :id", backend.Params{}, mysql)
	if !errors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBindNamed_UnterminatedLiteral(t *testing.T) {
	mysql, _ := DialectByName("mysql")
	_, _, err := bindNamed("SELECT 'oops FROM t", backend.Params{}, mysql)
	if !errors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func mockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	dialect, _ := DialectByName("mysql")
	return &Adapter{db: db, dialect: dialect, maxRows: defaultMaxRows}, mock
}

func TestAdapter_ExecuteQuery(t *testing.T) {
	a, mock := mockAdapter(t)
	mock.ExpectQuery("SELECT \\* FROM sensor_data WHERE unit = \\?").
		WithArgs("boiler-1").
		WillReturnRows(sqlmock.NewRows([]string{"ts", "temp"}).
			AddRow("2025-06-01 10:00:00", 81.5).
			AddRow("2025-06-01 10:01:00", 82.0))

	qr, err := a.ExecuteQuery(context.Background(),
		"SELECT * FROM sensor_data WHERE unit = :unit",
		backend.Params{"unit": "boiler-1"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if qr.RowCount != 2 {
		t.Fatalf("row count = %d, want 2", qr.RowCount)
	}
	if len(qr.Columns) != 2 || qr.Columns[0] != "ts" {
		t.Fatalf("columns: %v", qr.Columns)
	}
	if qr.SQLPreview != "SELECT * FROM sensor_data WHERE unit = ?" {
		t.Fatalf("sql preview: %q", qr.SQLPreview)
	}
	if qr.Metadata["dialect"] != "mysql" {
		t.Fatalf("metadata: %v", qr.Metadata)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAdapter_ExecuteQuery_LimitParamPaginates(t *testing.T) {
	a, mock := mockAdapter(t)
	mock.ExpectQuery("SELECT \\* FROM sensor_data ORDER BY ts DESC LIMIT 1").
		WillReturnRows(sqlmock.NewRows([]string{"temp"}).AddRow(81.5))

	qr, err := a.ExecuteQuery(context.Background(),
		"SELECT * FROM sensor_data ORDER BY ts DESC",
		backend.Params{"limit": 1})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if qr.SQLPreview != "SELECT * FROM sensor_data ORDER BY ts DESC LIMIT 1" {
		t.Fatalf("sql preview: %q", qr.SQLPreview)
	}
}

func TestAdapter_ExecuteQuery_RejectsNonSelect(t *testing.T) {
	a, _ := mockAdapter(t)
	_, err := a.ExecuteQuery(context.Background(), "DELETE FROM sensor_data", nil)
	if !errors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAdapter_ExecuteQuery_CapsRows(t *testing.T) {
	a, mock := mockAdapter(t)
	a.maxRows = 2

	rows := sqlmock.NewRows([]string{"n"})
	for i := 0; i < 5; i++ {
		rows.AddRow(i)
	}
	mock.ExpectQuery("SELECT n FROM t").WillReturnRows(rows)

	qr, err := a.ExecuteQuery(context.Background(), "SELECT n FROM t", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if qr.RowCount != 2 {
		t.Fatalf("row cap not applied, got %d rows", qr.RowCount)
	}
}

func TestAdapter_ExecuteQuery_NotConnected(t *testing.T) {
	a := &Adapter{}
	_, err := a.ExecuteQuery(context.Background(), "SELECT 1", nil)
	if !errors.IsValidation(err) {
		t.Fatalf("expected not-connected validation error, got %v", err)
	}
}

func TestAdapter_DiscoverSchema(t *testing.T) {
	a, mock := mockAdapter(t)
	mock.ExpectQuery("SELECT table_name FROM information_schema.tables").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("sensor_data"))
	mock.ExpectQuery("SELECT column_name, data_type, is_nullable").
		WithArgs("sensor_data").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable"}).
			AddRow("ts", "datetime", "NO").
			AddRow("temp", "double", "YES"))

	schema, err := a.DiscoverSchema(context.Background())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if !schema.HasTable("sensor_data") {
		t.Fatalf("table missing: %v", schema.Tables)
	}
	if !schema.HasColumn("sensor_data", "temp") {
		t.Fatalf("column missing: %v", schema.Fields)
	}
	fields := schema.Fields["sensor_data"]
	if fields[0].Nullable || !fields[1].Nullable {
		t.Fatalf("nullability mapping wrong: %+v", fields)
	}
}

func TestAdapter_DisconnectIdempotent(t *testing.T) {
	a, mock := mockAdapter(t)
	mock.ExpectClose()
	if err := a.Disconnect(); err != nil {
		t.Fatalf("first disconnect: %v", err)
	}
	if err := a.Disconnect(); err != nil {
		t.Fatalf("second disconnect: %v", err)
	}
}
