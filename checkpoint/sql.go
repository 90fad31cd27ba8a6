package checkpoint

import (
	"context"
	"fmt"
)

/*
SQLAdapter is an interface for objects adapting the checkpoint table
operations to a concrete SQL dialect. Table creation, placeholder
syntax and the upsert form differ per driver; everything else the SQL
store shares.

Implementations for PostgreSQL and SQLite3 are available in the
pgadapter and sqlite3adapter sub-packages.
*/
type SQLAdapter interface {
	// CreateCheckpointTable ensures the checkpoints table exists.
	CreateCheckpointTable(ctx context.Context) error
	// PutCheckpoint inserts or replaces the payload under key.
	PutCheckpoint(ctx context.Context, key string, data []byte) error
	// GetCheckpoint returns the payload under key, reporting with ok
	// whether the row exists at all.
	GetCheckpoint(ctx context.Context, key string) (data []byte, ok bool, err error)
	// DeleteCheckpoint removes the row under key. Absent rows are not
	// an error.
	DeleteCheckpoint(ctx context.Context, key string) error
	// Close closes the underlying database handle.
	Close() error
}

type sqlStore struct {
	db SQLAdapter
}

/*
NewSQLStore takes an adapter to a SQL database and returns a Store that
keeps each checkpoint as a row of its checkpoints table, keyed by name.
It ensures the table exists before returning. The store owns the
adapter and closes it on Close.
*/
func NewSQLStore(ctx context.Context, db SQLAdapter) (Store, error) {
	if err := db.CreateCheckpointTable(ctx); err != nil {
		return nil, fmt.Errorf("preparing checkpoint table: %v", err)
	}
	return &sqlStore{db: db}, nil
}

func (ss *sqlStore) Save(ctx context.Context, key string, data []byte) error {
	if err := ss.db.PutCheckpoint(ctx, key, data); err != nil {
		return fmt.Errorf("saving checkpoint %q in sql store: %v", key, err)
	}
	return nil
}

func (ss *sqlStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, ok, err := ss.db.GetCheckpoint(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint %q from sql store: %v", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("loading checkpoint %q from sql store: %w", key, ErrNotFound)
	}
	return data, nil
}

func (ss *sqlStore) Delete(ctx context.Context, key string) error {
	if err := ss.db.DeleteCheckpoint(ctx, key); err != nil {
		return fmt.Errorf("deleting checkpoint %q from sql store: %v", key, err)
	}
	return nil
}

func (ss *sqlStore) Close(ctx context.Context) error {
	return ss.db.Close()
}
