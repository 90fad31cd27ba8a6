/*
Package sqlite3adapter provides an implementation of the SQLAdapter
interface in the checkpoint package that works over an SQLite3
database file.
*/
package sqlite3adapter

import (
	"context"
	"database/sql"

	// Import of sqlite3 driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/facekit/conifer/checkpoint"
)

const (
	checkpointTableCreateStmt = `CREATE TABLE IF NOT EXISTS checkpoints (
		key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		saved_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`

	putCheckpointStmt = `INSERT OR REPLACE INTO checkpoints (key, data, saved_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)`

	getCheckpointStmt = `SELECT data FROM checkpoints WHERE key = ?`

	deleteCheckpointStmt = `DELETE FROM checkpoints WHERE key = ?`
)

type adapter struct {
	db *sql.DB
}

/*
New takes a path to an SQLite3 database file and a maximum number of
open connections (0 for no limit) and returns a checkpoint.SQLAdapter
that works on the file's database or an error if it fails to open as
an sqlite3 database.
*/
func New(path string, maxConns int) (checkpoint.SQLAdapter, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
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
