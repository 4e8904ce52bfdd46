package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/infra/storage"
)

const (
	findFunctionQuery = `SELECT id, name, prompt FROM functions WHERE id = $1`
	findWorkflowQuery = `SELECT id, name FROM workflows WHERE id = $1`
)

type RecordRepo struct {
	db *sqlx.DB
}

func NewRecordRepo(db *DB) *RecordRepo {
	return &RecordRepo{db: db.DB}
}

func (r *RecordRepo) FindFunction(ctx context.Context, id string) (*domain.Function, error) {
	var f domain.Function
	if err := r.db.GetContext(ctx, &f, findFunctionQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load function %s: %w", id, err)
	}
	return &f, nil
}

func (r *RecordRepo) FindWorkflow(ctx context.Context, id string) (*domain.Workflow, error) {
	var w domain.Workflow
	if err := r.db.GetContext(ctx, &w, findWorkflowQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
	}
	return &w, nil
}
