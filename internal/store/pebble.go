package store

import (
	"context"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

type pebbleStore struct {
	db   *pebble.DB
	sync bool
}

// NewPebble opens (or creates) a pebble database in dir.
func NewPebble(dir string, sync bool) (Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}

	zap.L().With(zap.String("dir", dir)).Info("Store: Opened pebble database")

	return &pebbleStore{db: db, sync: sync}, nil
}

func (s *pebbleStore) Load(_ context.Context) (*Snapshot, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	snapshot := NewSnapshot()
	for iter.First(); iter.Valid(); iter.Next() {
		if err := decode(snapshot, string(iter.Key()), iter.Value()); err != nil {
			return nil, err
		}
	}

	return snapshot, iter.Error()
}

func (s *pebbleStore) Apply(_ context.Context, changes Changeset) error {
	if changes.Empty() {
		return nil
	}

	mutations, err := encode(changes)
	if err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	for _, m := range mutations {
		if m.delete {
			err = batch.Delete([]byte(m.key), nil)
		} else {
			err = batch.Set([]byte(m.key), m.value, nil)
		}
		if err != nil {
			return err
		}
	}

	writeOptions := pebble.NoSync
	if s.sync {
		writeOptions = pebble.Sync
	}
	if err := batch.Commit(writeOptions); err != nil {
		zap.L().With(zap.Error(err)).Error("Store: Failed to commit pebble batch")
		return err
	}

	return nil
}

func (s *pebbleStore) Close() error {
	return s.db.Close()
}
