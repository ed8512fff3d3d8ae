package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZilDuck/nft-marketplace/internal/entity"
)

var (
	ErrUnknownDriver = errors.New("unknown store driver")
	ErrCorruptEntry  = errors.New("corrupt store entry")
	ErrInvalidKey    = errors.New("listing key has no collection")
)

// Store persists ledger state. Apply must be atomic: either every change in
// the changeset is written or none is.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Apply(ctx context.Context, changes Changeset) error
	Close() error
}

type Snapshot struct {
	Operator        entity.Principal
	OperatorBalance uint64
	Listings        map[entity.TokenKey]entity.Listing
	Proceeds        map[entity.Principal]uint64
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		Listings: make(map[entity.TokenKey]entity.Listing),
		Proceeds: make(map[entity.Principal]uint64),
	}
}

// Changeset holds the values a ledger operation wrote. A nil listing deletes
// the listing and a zero proceeds balance deletes the entry.
type Changeset struct {
	Operator        *entity.Principal
	OperatorBalance *uint64
	Listings        map[entity.TokenKey]*entity.Listing
	Proceeds        map[entity.Principal]uint64
}

func NewChangeset() Changeset {
	return Changeset{
		Listings: make(map[entity.TokenKey]*entity.Listing),
		Proceeds: make(map[entity.Principal]uint64),
	}
}

func (c Changeset) Empty() bool {
	return c.Operator == nil && c.OperatorBalance == nil && len(c.Listings) == 0 && len(c.Proceeds) == 0
}

const (
	MemoryDriver = "memory"
	PebbleDriver = "pebble"
)

func Open(driver, dir string, sync bool) (Store, error) {
	switch driver {
	case MemoryDriver:
		return NewMemory(), nil
	case PebbleDriver:
		return NewPebble(dir, sync)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}
