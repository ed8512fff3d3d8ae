package store

import (
	"context"
	"testing"

	"github.com/ZilDuck/nft-marketplace/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	seller     = entity.MustPrincipal("0x1111111111111111111111111111111111111111")
	operator   = entity.MustPrincipal("0x9999999999999999999999999999999999999999")
	collection = entity.MustCollection("0x2222222222222222222222222222222222222222")
)

func uint64Ptr(v uint64) *uint64 {
	return &v
}

func stores(t *testing.T) map[string]Store {
	pebbleStore, err := NewPebble(t.TempDir(), false)
	require.NoError(t, err)

	return map[string]Store{
		MemoryDriver: NewMemory(),
		PebbleDriver: pebbleStore,
	}
}

func TestApplyAndLoad(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()

			empty, err := s.Load(ctx)
			require.NoError(t, err)
			assert.True(t, empty.Operator.IsZero())
			assert.Empty(t, empty.Listings)
			assert.Empty(t, empty.Proceeds)

			changes := NewChangeset()
			changes.Operator = &operator
			changes.OperatorBalance = uint64Ptr(20_000)
			changes.Listings[entity.NewTokenKey(collection, 1)] = &entity.Listing{Seller: seller, Price: 1_000_000}
			changes.Listings[entity.NewTokenKey(collection, 2)] = &entity.Listing{Seller: seller, Price: 5}
			changes.Proceeds[seller] = 980_000
			require.NoError(t, s.Apply(ctx, changes))

			snapshot, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, operator, snapshot.Operator)
			assert.Equal(t, uint64(20_000), snapshot.OperatorBalance)
			assert.Equal(t, entity.Listing{Seller: seller, Price: 1_000_000}, snapshot.Listings[entity.NewTokenKey(collection, 1)])
			assert.Len(t, snapshot.Listings, 2)
			assert.Equal(t, uint64(980_000), snapshot.Proceeds[seller])

			deletes := NewChangeset()
			deletes.Listings[entity.NewTokenKey(collection, 1)] = nil
			deletes.Proceeds[seller] = 0
			require.NoError(t, s.Apply(ctx, deletes))

			snapshot, err = s.Load(ctx)
			require.NoError(t, err)
			assert.Len(t, snapshot.Listings, 1)
			_, found := snapshot.Listings[entity.NewTokenKey(collection, 1)]
			assert.False(t, found)
			_, found = snapshot.Proceeds[seller]
			assert.False(t, found)
		})
	}
}

func TestApplyEmptyChangesetIsNoop(t *testing.T) {
	s := NewMemory()
	defer s.Close()

	require.NoError(t, s.Apply(context.Background(), NewChangeset()))
	assert.True(t, NewChangeset().Empty())
}

func TestPebbleStateSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewPebble(dir, true)
	require.NoError(t, err)

	changes := NewChangeset()
	changes.Proceeds[seller] = 42
	require.NoError(t, s.Apply(ctx, changes))
	require.NoError(t, s.Close())

	reopened, err := NewPebble(dir, true)
	require.NoError(t, err)
	defer reopened.Close()

	snapshot, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), snapshot.Proceeds[seller])
}

func TestDecodeRejectsCorruptEntries(t *testing.T) {
	snapshot := NewSnapshot()

	assert.ErrorIs(t, decode(snapshot, "/unknown", []byte("1")), ErrCorruptEntry)
	assert.ErrorIs(t, decode(snapshot, operatorBalanceKey, []byte("abc")), ErrCorruptEntry)
	assert.ErrorIs(t, decode(snapshot, "/listing/0x22/notanumber", []byte("{}")), ErrCorruptEntry)
	assert.ErrorIs(t, decode(snapshot, "/listing/0x22/1", []byte("{")), ErrCorruptEntry)
	assert.ErrorIs(t, decode(snapshot, "/listing//1", []byte(`{"seller":"0x11","price":1}`)), ErrCorruptEntry)
}

func TestApplyRejectsListingWithoutCollection(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()

			changes := NewChangeset()
			changes.Proceeds[seller] = 7
			changes.Listings[entity.NewTokenKey("", 5)] = &entity.Listing{Seller: seller, Price: 5}
			assert.ErrorIs(t, s.Apply(ctx, changes), ErrInvalidKey)

			snapshot, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, snapshot.Listings)
			assert.Empty(t, snapshot.Proceeds)
		})
	}
}

func TestOpen(t *testing.T) {
	s, err := Open(MemoryDriver, "", false)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open("redis", "", false)
	assert.ErrorIs(t, err, ErrUnknownDriver)
}
