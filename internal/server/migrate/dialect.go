package migrate

import (
	"fmt"

	"github.com/pressly/goose/v3"
)

// Dialect renders portable ops into a database's SQL.
type Dialect interface {
	Name() string
	Goose() goose.Dialect
	ColumnType(t ColumnType) string
	AlterColumnType(table, column string, t ColumnType) []string
}

// DialectFor maps a database/sql driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "pgx", "postgres", "postgresql":
		return Postgres{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

type Postgres struct{}

func (Postgres) Name() string         { return "postgres" }
func (Postgres) Goose() goose.Dialect { return goose.DialectPostgres }

func (Postgres) ColumnType(t ColumnType) string {
	switch t.Kind {
	case KindSerial:
		return "SERIAL"
	case KindInteger:
		return "INTEGER"
	case KindBigInt:
		return "BIGINT"
	case KindText:
		return "TEXT"
	case KindBool:
		return "BOOLEAN"
	case KindTimestamp:
		return "TIMESTAMP"
	case KindDate:
		return "DATE"
	case KindChar:
		return fmt.Sprintf("CHAR(%d)", t.Size)
	case KindBinary:
		// postgres has no fixed-width binary type
		return "BYTEA"
	default:
		panic(fmt.Sprintf("migrate: unknown column type %d", t.Kind))
	}
}

func (p Postgres) AlterColumnType(table, column string, t ColumnType) []string {
	return []string{fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s", quote(table), quote(column), p.ColumnType(t))}
}

// SQLite is used for local development and tests. Its INTEGER storage class
// already holds 64-bit values, so type changes are no-ops.
type SQLite struct{}

func (SQLite) Name() string         { return "sqlite" }
func (SQLite) Goose() goose.Dialect { return goose.DialectSQLite3 }

func (SQLite) ColumnType(t ColumnType) string {
	switch t.Kind {
	case KindSerial, KindInteger:
		return "INTEGER"
	case KindBigInt:
		return "BIGINT"
	case KindText:
		return "TEXT"
	case KindBool:
		return "BOOLEAN"
	case KindTimestamp:
		return "TIMESTAMP"
	case KindDate:
		return "DATE"
	case KindChar:
		return fmt.Sprintf("CHAR(%d)", t.Size)
	case KindBinary:
		return "BLOB"
	default:
		panic(fmt.Sprintf("migrate: unknown column type %d", t.Kind))
	}
}

func (SQLite) AlterColumnType(string, string, ColumnType) []string {
	return nil
}
