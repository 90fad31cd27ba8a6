package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/facekit/conifer/checkpoint"
	"github.com/facekit/conifer/checkpoint/pgadapter"
	"github.com/facekit/conifer/checkpoint/sqlite3adapter"
	mgo "gopkg.in/mgo.v2"
	redis "gopkg.in/redis.v5"
)

// openCheckpointStore opens the checkpoint store the url describes: a
// redis server for redis:// urls, a MongoDB database for mongodb://
// urls, a PostgreSQL database for postgresql:// urls, an SQLite3
// database for paths ending in .db, and a local directory for anything
// else.
func openCheckpointStore(ctx context.Context, config *rootCmdConfig, url, redisPrefix, mongoDB string) (checkpoint.Store, error) {
	if strings.HasPrefix(url, "redis://") {
		return redisCheckpointStore(config, url, redisPrefix)
	}
	if strings.HasPrefix(url, "mongodb://") {
		return mongoCheckpointStore(config, url, mongoDB)
	}
	if strings.HasPrefix(url, "postgresql://") {
		return postgreSQLCheckpointStore(ctx, config, url)
	}
	if strings.HasSuffix(url, ".db") {
		return sqlite3CheckpointStore(ctx, config, url)
	}
	config.Logf("Keeping tree checkpoints on directory %s...", url)
	return checkpoint.NewFileStore(url)
}

func redisCheckpointStore(config *rootCmdConfig, url, prefix string) (checkpoint.Store, error) {
	config.Logf("Connecting to redis at %s to keep tree checkpoints...", url)
	rc := redis.NewClient(&redis.Options{Addr: strings.TrimPrefix(url, "redis://")})
	err := rc.Ping().Err()
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %v", url, err)
	}
	return checkpoint.NewRedisStore(rc, prefix), nil
}

func mongoCheckpointStore(config *rootCmdConfig, url, db string) (checkpoint.Store, error) {
	config.Logf("Connecting to MongoDB at %s to keep tree checkpoints...", url)
	session, err := mgo.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB at %s: %v", url, err)
	}
	return checkpoint.NewMongoStore(session, db, "checkpoints"), nil
}

func postgreSQLCheckpointStore(ctx context.Context, config *rootCmdConfig, url string) (checkpoint.Store, error) {
	config.Logf("Creating PostgreSQL adapter for url %s to keep tree checkpoints...", url)
	adapter, err := pgadapter.New(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to PostgreSQL at %s: %v", url, err)
	}
	return checkpoint.NewSQLStore(ctx, adapter)
}

func sqlite3CheckpointStore(ctx context.Context, config *rootCmdConfig, path string) (checkpoint.Store, error) {
	config.Logf("Creating SQLite3 adapter for file %s to keep tree checkpoints...", path)
	adapter, err := sqlite3adapter.New(path, 0)
	if err != nil {
		return nil, fmt.Errorf("opening SQLite3 database at %s: %v", path, err)
	}
	return checkpoint.NewSQLStore(ctx, adapter)
}
