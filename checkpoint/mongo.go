package checkpoint

import (
	"context"
	"fmt"
	"time"

	mgo "gopkg.in/mgo.v2"
)

type mongoStore struct {
	session    *mgo.Session
	db         string
	collection string
}

type mongoCheckpoint struct {
	Key     string    `bson:"_id"`
	Data    []byte    `bson:"data"`
	SavedAt time.Time `bson:"saved_at"`
}

/*
NewMongoStore takes a MongoDB database session and returns a Store
that keeps each checkpoint as a document of the given database and
collection, keyed by its name. The store owns the session and closes
it on Close.
*/
func NewMongoStore(session *mgo.Session, db, collection string) Store {
	return &mongoStore{session: session, db: db, collection: collection}
}

func (ms *mongoStore) Save(ctx context.Context, key string, data []byte) error {
	doc := mongoCheckpoint{Key: key, Data: data, SavedAt: time.Now()}
	_, err := ms.checkpoints().UpsertId(key, doc)
	if err != nil {
		return fmt.Errorf("saving checkpoint %q in mongodb: %v", key, err)
	}
	return nil
}

func (ms *mongoStore) Load(ctx context.Context, key string) ([]byte, error) {
	var doc mongoCheckpoint
	err := ms.checkpoints().FindId(key).One(&doc)
	if err == mgo.ErrNotFound {
		return nil, fmt.Errorf("loading checkpoint %q from mongodb: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint %q from mongodb: %v", key, err)
	}
	return doc.Data, nil
}

func (ms *mongoStore) Delete(ctx context.Context, key string) error {
	err := ms.checkpoints().RemoveId(key)
	if err != nil && err != mgo.ErrNotFound {
		return fmt.Errorf("deleting checkpoint %q from mongodb: %v", key, err)
	}
	return nil
}

func (ms *mongoStore) Close(ctx context.Context) error {
	ms.session.Close()
	return nil
}

func (ms *mongoStore) checkpoints() *mgo.Collection {
	return ms.session.DB(ms.db).C(ms.collection)
}
