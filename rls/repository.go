package rls

import (
	"context"

	"github.com/rowlock/rowlock"
)

// guardedRepository wraps a repository with mutation guards. Reads are
// already narrowed by the query-time filters, so they pass through
// unchanged; a row the filters hide surfaces as absent, never as
// forbidden. Mutations first load the current row through the filtered
// path, then evaluate allow/deny and validate rules against the row and
// the incoming data.
type guardedRepository struct {
	rowlock.Repository
	e *Enforcer
}

func (r *guardedRepository) Create(ctx context.Context, data rowlock.Row) (rowlock.Row, error) {
	if err := r.e.CheckCreate(ctx, r.ResourceName(), data); err != nil {
		return nil, err
	}
	return r.Repository.Create(ctx, data)
}

// Update loads the current row first; a row hidden from the caller
// surfaces as not-found before any rule runs against it.
func (r *guardedRepository) Update(ctx context.Context, id any, data rowlock.Row) (rowlock.Row, error) {
	row, err := r.Repository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.e.CheckUpdate(ctx, r.ResourceName(), row, data); err != nil {
		return nil, err
	}
	return r.Repository.Update(ctx, id, data)
}

func (r *guardedRepository) Delete(ctx context.Context, id any) error {
	row, err := r.Repository.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := r.e.CheckDelete(ctx, r.ResourceName(), row); err != nil {
		return err
	}
	return r.Repository.Delete(ctx, id)
}
