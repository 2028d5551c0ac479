package pipeline

import (
	"context"

	"github.com/rowlock/rowlock"
	"github.com/rowlock/rowlock/dialect/sql"
)

// repository is the base table repository built over an engine handle.
// It carries no behavior of its own beyond translating the row
// operations into engine calls; plugins layer additional behavior
// through their repository extensions.
type repository struct {
	eng      rowlock.Engine
	resource string
	idColumn string
}

// NewRepository returns a repository for the named resource executing
// against eng. When eng is a wrapped handle, every repository operation
// is intercepted like any other entry-point call.
func NewRepository(eng rowlock.Engine, resource, idColumn string) rowlock.Repository {
	if idColumn == "" {
		idColumn = "id"
	}
	return &repository{eng: eng, resource: resource, idColumn: idColumn}
}

func (r *repository) ResourceName() string   { return r.resource }
func (r *repository) Engine() rowlock.Engine { return r.eng }

// FindByID returns the row with the given identifier, or a not-found
// error. A row hidden by a read filter is indistinguishable from an
// absent one.
func (r *repository) FindByID(ctx context.Context, id any) (rowlock.Row, error) {
	q, err := r.eng.Query(ctx, rowlock.OpRead, r.resource)
	if err != nil {
		return nil, err
	}
	if f, ok := q.(rowlock.Filterable); ok {
		f.WhereP(func(s *sql.Selector) {
			s.Where(sql.EQ(s.C(r.idColumn), id))
		})
	}
	rows, err := r.eng.All(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, rowlock.NewNotFoundError(r.resource, id)
	}
	return rows[0], nil
}

// FindAll returns every visible row of the resource.
func (r *repository) FindAll(ctx context.Context) ([]rowlock.Row, error) {
	q, err := r.eng.Query(ctx, rowlock.OpRead, r.resource)
	if err != nil {
		return nil, err
	}
	return r.eng.All(ctx, q)
}

// Create inserts a row and returns the stored data.
func (r *repository) Create(ctx context.Context, data rowlock.Row) (rowlock.Row, error) {
	q, err := r.eng.Query(ctx, rowlock.OpCreate, r.resource)
	if err != nil {
		return nil, err
	}
	fs, ok := q.(rowlock.FieldSetter)
	if !ok {
		return nil, rowlock.ErrUnsupported
	}
	for k, v := range data {
		fs.SetField(k, v)
	}
	if _, err := r.eng.Exec(ctx, q); err != nil {
		return nil, err
	}
	return staged(fs, data), nil
}

// Update modifies the identified row with the given column values and
// returns the updated data. Updating an absent (or hidden) row returns
// a not-found error.
func (r *repository) Update(ctx context.Context, id any, data rowlock.Row) (rowlock.Row, error) {
	q, err := r.eng.Query(ctx, rowlock.OpUpdate, r.resource)
	if err != nil {
		return nil, err
	}
	fs, ok := q.(rowlock.FieldSetter)
	if !ok {
		return nil, rowlock.ErrUnsupported
	}
	for k, v := range data {
		fs.SetField(k, v)
	}
	if f, ok := q.(rowlock.Filterable); ok {
		f.WhereP(func(s *sql.Selector) {
			s.Where(sql.EQ(s.C(r.idColumn), id))
		})
	}
	affected, err := r.eng.Exec(ctx, q)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, rowlock.NewNotFoundError(r.resource, id)
	}
	updated := staged(fs, data)
	updated[r.idColumn] = id
	return updated, nil
}

// Delete removes the identified row. Deleting an absent (or hidden) row
// returns a not-found error.
func (r *repository) Delete(ctx context.Context, id any) error {
	q, err := r.eng.Query(ctx, rowlock.OpDelete, r.resource)
	if err != nil {
		return err
	}
	if f, ok := q.(rowlock.Filterable); ok {
		f.WhereP(func(s *sql.Selector) {
			s.Where(sql.EQ(s.C(r.idColumn), id))
		})
	}
	affected, err := r.eng.Exec(ctx, q)
	if err != nil {
		return err
	}
	if affected == 0 {
		return rowlock.NewNotFoundError(r.resource, id)
	}
	return nil
}

// staged returns the effective column values of a mutation, preferring
// what the query representation holds after interception over the
// caller-supplied data.
func staged(fs rowlock.FieldSetter, data rowlock.Row) rowlock.Row {
	out := data.Clone()
	if out == nil {
		out = rowlock.Row{}
	}
	for k := range out {
		if v, ok := fs.Field(k); ok {
			out[k] = v
		}
	}
	return out
}
