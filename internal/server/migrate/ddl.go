package migrate

import (
	"fmt"
	"strings"
)

// TypeKind enumerates the portable column types revisions may declare.
type TypeKind int

const (
	KindSerial TypeKind = iota + 1
	KindInteger
	KindBigInt
	KindText
	KindBool
	KindTimestamp
	KindDate
	KindChar
	KindBinary
)

// ColumnType is a portable column type; Size is used by Char and Binary.
type ColumnType struct {
	Kind TypeKind
	Size int
}

var (
	Serial    = ColumnType{Kind: KindSerial}
	Integer   = ColumnType{Kind: KindInteger}
	BigInt    = ColumnType{Kind: KindBigInt}
	Text      = ColumnType{Kind: KindText}
	Bool      = ColumnType{Kind: KindBool}
	Timestamp = ColumnType{Kind: KindTimestamp}
	Date      = ColumnType{Kind: KindDate}
)

func Char(n int) ColumnType   { return ColumnType{Kind: KindChar, Size: n} }
func Binary(n int) ColumnType { return ColumnType{Kind: KindBinary, Size: n} }

// ForeignKey points a column at table(column). Without an ON DELETE clause
// the database restricts deletes of referenced rows.
type ForeignKey struct {
	Table  string
	Column string
}

// Column describes one column of a CreateTable or AddColumn op.
type Column struct {
	Name       string
	Type       ColumnType
	PrimaryKey bool
	NotNull    bool
	Unique     bool
	Default    string
	References *ForeignKey
}

func (c Column) definition(d Dialect) string {
	var b strings.Builder
	b.WriteString(quote(c.Name))
	b.WriteByte(' ')
	b.WriteString(d.ColumnType(c.Type))
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	}
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.Unique {
		b.WriteString(" UNIQUE")
	}
	if c.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
	}
	if c.References != nil {
		fmt.Fprintf(&b, " REFERENCES %s (%s)", quote(c.References.Table), quote(c.References.Column))
	}
	return b.String()
}

// Op is one structural schema change. Statements renders it for a dialect;
// an empty result means the change is a no-op there.
type Op interface {
	Statements(d Dialect) []string
}

type CreateTable struct {
	Name    string
	Columns []Column
}

func (o CreateTable) Statements(d Dialect) []string {
	defs := make([]string, 0, len(o.Columns))
	for _, c := range o.Columns {
		defs = append(defs, c.definition(d))
	}
	return []string{fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", quote(o.Name), strings.Join(defs, ",\n\t"))}
}

type DropTable struct {
	Name string
}

func (o DropTable) Statements(Dialect) []string {
	return []string{"DROP TABLE " + quote(o.Name)}
}

type AddColumn struct {
	Table  string
	Column Column
}

func (o AddColumn) Statements(d Dialect) []string {
	return []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quote(o.Table), o.Column.definition(d))}
}

type DropColumn struct {
	Table  string
	Column string
}

func (o DropColumn) Statements(Dialect) []string {
	return []string{fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", quote(o.Table), quote(o.Column))}
}

// AlterColumnType changes the declared type of an existing column.
type AlterColumnType struct {
	Table  string
	Column string
	Type   ColumnType
}

func (o AlterColumnType) Statements(d Dialect) []string {
	return d.AlterColumnType(o.Table, o.Column, o.Type)
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
