package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/platinummonkey/gantry/pkg/metadata"
)

// Dialect captures the SQL differences between supported databases
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

// ParseDialect maps a driver name to a dialect
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// DriverName returns the database/sql driver name
func (d Dialect) DriverName() string {
	return string(d)
}

// Placeholder returns the bind placeholder for the n-th argument (1-based)
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// AutoIncrementPK returns the column definition of a generated integer key
func (d Dialect) AutoIncrementPK() string {
	if d == Postgres {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

// ColumnType returns the DDL type of a scalar field
func (d Dialect) ColumnType(f *metadata.Field) string {
	switch f.Type {
	case metadata.TypeText:
		return "TEXT"
	case metadata.TypeBool:
		return "BOOLEAN"
	case metadata.TypeInt:
		if d == Postgres {
			return "BIGINT"
		}
		return "INTEGER"
	case metadata.TypeFloat:
		if d == Postgres {
			return "DOUBLE PRECISION"
		}
		return "REAL"
	case metadata.TypeDecimal:
		if d == Postgres {
			return "NUMERIC(20, 6)"
		}
		return "NUMERIC"
	case metadata.TypeDate:
		return "DATE"
	case metadata.TypeDateTime:
		if d == Postgres {
			return "TIMESTAMP"
		}
		return "DATETIME"
	case metadata.TypeRelation:
		return d.IdentifierType(f.Relation.TargetResource())
	default:
		return "VARCHAR(255)"
	}
}

// IdentifierType returns the column type used to reference a resource
func (d Dialect) IdentifierType(res *metadata.Resource) string {
	if res == nil {
		return "VARCHAR(255)"
	}
	switch res.Identifier.Kind {
	case metadata.IdentifierAuto:
		if d == Postgres {
			return "BIGINT"
		}
		return "INTEGER"
	case metadata.IdentifierUUID:
		return "VARCHAR(36)"
	default:
		fields := res.IdentifierFields()
		if len(fields) == 1 {
			return d.ColumnType(fields[0])
		}
		return "VARCHAR(255)"
	}
}

// Bind converts a Go value into a driver argument for the given field.
// Dates are bound as fixed width UTC strings on SQLite so that stored
// values compare lexicographically.
func (d Dialect) Bind(f *metadata.Field, v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		return d.BindTime(f.Type, x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return d.BindTime(f.Type, *x)
	case decimal.Decimal:
		return x.String()
	case *decimal.Decimal:
		if x == nil {
			return nil
		}
		return x.String()
	}
	return v
}

// BindTime formats a time for a date or datetime column
func (d Dialect) BindTime(t metadata.FieldType, v time.Time) any {
	v = v.UTC()
	if t == metadata.TypeDate {
		return v.Format("2006-01-02")
	}
	if d == SQLite {
		return v.Format("2006-01-02 15:04:05")
	}
	return v
}

// QuoteLiteral renders a string literal for values that come from metadata,
// never from requests
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
