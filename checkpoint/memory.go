package checkpoint

import (
	"context"
	"fmt"
	"sync"
)

type memoryStore struct {
	payloads map[string][]byte
	history  map[string][][]byte
	record   bool
	lock     *sync.RWMutex
}

/*
NewMemoryStore returns a Store with the process memory space as
underlying backend. It backs tests and short-lived experiments.
*/
func NewMemoryStore() Store {
	return newMemoryStore(false)
}

/*
NewRecordingMemoryStore returns a memory-backed store that additionally
keeps every payload ever saved per key, in save order, retrievable
with History. It allows observing the sequence of checkpoints a
training run writes.
*/
func NewRecordingMemoryStore() *MemoryStore {
	return &MemoryStore{newMemoryStore(true)}
}

/*
MemoryStore is the concrete type of recording memory stores, exposing
the saved-payload history on top of the Store interface.
*/
type MemoryStore struct {
	*memoryStore
}

// History returns copies of the payloads saved under key since the
// store was created, oldest first.
func (ms *MemoryStore) History(key string) [][]byte {
	ms.lock.RLock()
	defer ms.lock.RUnlock()
	history := make([][]byte, len(ms.history[key]))
	for i, payload := range ms.history[key] {
		history[i] = append([]byte(nil), payload...)
	}
	return history
}

func newMemoryStore(record bool) *memoryStore {
	return &memoryStore{
		payloads: make(map[string][]byte),
		history:  make(map[string][][]byte),
		record:   record,
		lock:     &sync.RWMutex{},
	}
}

func (ms *memoryStore) Save(ctx context.Context, key string, data []byte) error {
	return ms.withLock(ctx, func() error {
		payload := append([]byte(nil), data...)
		ms.payloads[key] = payload
		if ms.record {
			ms.history[key] = append(ms.history[key], payload)
		}
		return nil
	})
}

func (ms *memoryStore) Load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := ms.withRLock(ctx, func() error {
		payload, ok := ms.payloads[key]
		if !ok {
			return fmt.Errorf("loading checkpoint %s: %w", key, ErrNotFound)
		}
		data = append([]byte(nil), payload...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (ms *memoryStore) Delete(ctx context.Context, key string) error {
	return ms.withLock(ctx, func() error {
		delete(ms.payloads, key)
		return nil
	})
}

func (ms *memoryStore) Close(ctx context.Context) error {
	return nil
}

func (ms *memoryStore) withLock(ctx context.Context, f func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	gotLock := make(chan struct{})
	go func() {
		ms.lock.Lock()
		select {
		case <-ctx.Done():
			ms.lock.Unlock()
		case gotLock <- struct{}{}:
		}
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-gotLock:
		defer ms.lock.Unlock()
	}
	return f()
}

func (ms *memoryStore) withRLock(ctx context.Context, f func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	gotLock := make(chan struct{})
	go func() {
		ms.lock.RLock()
		select {
		case <-ctx.Done():
			ms.lock.RUnlock()
		case gotLock <- struct{}{}:
		}
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-gotLock:
		defer ms.lock.RUnlock()
	}
	return f()
}
