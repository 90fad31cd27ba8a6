/*
Package pgadapter provides an implementation of the SQLAdapter
interface in the checkpoint package that works over a PostgreSQL
database.
*/
package pgadapter

import (
	"context"
	"database/sql"

	// Import of PostgreSQL driver
	_ "github.com/lib/pq"

	"github.com/facekit/conifer/checkpoint"
)

const (
	checkpointTableCreateStmt = `CREATE TABLE IF NOT EXISTS checkpoints (
		key TEXT PRIMARY KEY,
		data BYTEA NOT NULL,
		saved_at TIMESTAMPTZ NOT NULL DEFAULT NOW())`

	putCheckpointStmt = `INSERT INTO checkpoints (key, data, saved_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, saved_at = NOW()`

	getCheckpointStmt = `SELECT data FROM checkpoints WHERE key = $1`

	deleteCheckpointStmt = `DELETE FROM checkpoints WHERE key = $1`
)

type adapter struct {
	db *sql.DB
}

/*
New takes a PostgreSQL database connection URL and returns a
checkpoint.SQLAdapter that works on the database or an error if it
fails to open it.
*/
func New(url string) (checkpoint.SQLAdapter, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}
	return &adapter{db}, nil
}

func (a *adapter) CreateCheckpointTable(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, checkpointTableCreateStmt)
	return err
}

func (a *adapter) PutCheckpoint(ctx context.Context, key string, data []byte) error {
	_, err := a.db.ExecContext(ctx, putCheckpointStmt, key, data)
	return err
}

func (a *adapter) GetCheckpoint(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := a.db.QueryRowContext(ctx, getCheckpointStmt, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (a *adapter) DeleteCheckpoint(ctx context.Context, key string) error {
	_, err := a.db.ExecContext(ctx, deleteCheckpointStmt, key)
	return err
}

func (a *adapter) Close() error {
	return a.db.Close()
}
