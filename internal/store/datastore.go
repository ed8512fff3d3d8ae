package store

import (
	"context"

	ds "github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	dssync "github.com/ipfs/go-datastore/sync"
	"go.uber.org/zap"
)

type datastoreStore struct {
	ds ds.Batching
}

// NewDatastore stores ledger state in any batching datastore.
func NewDatastore(d ds.Batching) Store {
	return &datastoreStore{ds: d}
}

// NewMemory keeps ledger state in a mutex wrapped map datastore.
func NewMemory() Store {
	return NewDatastore(dssync.MutexWrap(ds.NewMapDatastore()))
}

func (s *datastoreStore) Load(ctx context.Context) (*Snapshot, error) {
	results, err := s.ds.Query(ctx, query.Query{})
	if err != nil {
		return nil, err
	}
	defer results.Close()

	snapshot := NewSnapshot()
	for result := range results.Next() {
		if result.Error != nil {
			return nil, result.Error
		}
		if err := decode(snapshot, result.Key, result.Value); err != nil {
			return nil, err
		}
	}

	return snapshot, nil
}

func (s *datastoreStore) Apply(ctx context.Context, changes Changeset) error {
	if changes.Empty() {
		return nil
	}

	mutations, err := encode(changes)
	if err != nil {
		return err
	}

	batch, err := s.ds.Batch(ctx)
	if err != nil {
		return err
	}
	for _, m := range mutations {
		if m.delete {
			err = batch.Delete(ctx, ds.NewKey(m.key))
		} else {
			err = batch.Put(ctx, ds.NewKey(m.key), m.value)
		}
		if err != nil {
			return err
		}
	}

	if err := batch.Commit(ctx); err != nil {
		zap.L().With(zap.Error(err)).Error("Store: Failed to commit batch")
		return err
	}

	return nil
}

func (s *datastoreStore) Close() error {
	return s.ds.Close()
}
