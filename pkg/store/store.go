package store

import "context"

// Row is a single record keyed by column name. JSON-shaped values
// (maps, slices) round-trip through the jsonb columns of the Postgres
// implementation unchanged.
type Row = map[string]any

// Op is a filter comparison operator
type Op string

const (
	OpEq     Op = "eq"
	OpIn     Op = "in"
	OpIsNull Op = "is_null"
)

// Condition is a single column comparison
type Condition struct {
	Column string
	Op     Op
	Value  any
	Values []any
}

// Filter is a conjunction of conditions. An empty filter matches every row.
type Filter []Condition

// Eq matches rows whose column equals value
func Eq(column string, value any) Condition {
	return Condition{Column: column, Op: OpEq, Value: value}
}

// In matches rows whose column is one of values
func In(column string, values ...any) Condition {
	return Condition{Column: column, Op: OpIn, Values: values}
}

// IsNull matches rows whose column is null or absent
func IsNull(column string) Condition {
	return Condition{Column: column, Op: OpIsNull}
}

// Where builds a filter from conditions
func Where(conds ...Condition) Filter {
	return Filter(conds)
}

// Order describes a single-column sort
type Order struct {
	Column string
	Desc   bool
}

// Asc sorts ascending by column
func Asc(column string) *Order { return &Order{Column: column} }

// Desc sorts descending by column
func Desc(column string) *Order { return &Order{Column: column, Desc: true} }

// Store is the persistence collaborator: an opaque record store addressed
// by table name and filters. Upsert resolves conflicts on the given key
// columns, updating the existing row instead of inserting a duplicate.
type Store interface {
	Select(ctx context.Context, table string, filter Filter, order *Order) ([]Row, error)
	Insert(ctx context.Context, table string, rows []Row) error
	Update(ctx context.Context, table string, patch Row, filter Filter) (int, error)
	Delete(ctx context.Context, table string, filter Filter) (int, error)
	Upsert(ctx context.Context, table string, rows []Row, conflictKeys []string) error
}
