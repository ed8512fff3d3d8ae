package event

import (
	"sync"
	"testing"

	"github.com/ZilDuck/nft-marketplace/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerDeliversInOrder(t *testing.T) {
	m := NewManager()

	var mu sync.Mutex
	received := make([]Type, 0)
	m.AddEventListener(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e.Type)
	})

	m.Emit(TokenListedEvent, TokenListed{Price: 1})
	m.Emit(TokenSoldEvent, TokenSold{Price: 1})
	m.Emit(ProceedsWithdrawnEvent, ProceedsWithdrawn{Amount: 1})
	m.Close()

	assert.Equal(t, []Type{TokenListedEvent, TokenSoldEvent, ProceedsWithdrawnEvent}, received)
}

func TestManagerFiltersByType(t *testing.T) {
	m := NewManager()

	sold := make([]Event, 0)
	m.AddEventListener(func(e Event) {
		sold = append(sold, e)
	}, TokenSoldEvent)

	m.Emit(TokenListedEvent, TokenListed{})
	emitted := m.Emit(TokenSoldEvent, TokenSold{
		Collection: entity.MustCollection("0x2222222222222222222222222222222222222222"),
		Price:      10,
		TokenId:    3,
	})
	m.Close()

	require.Len(t, sold, 1)
	assert.Equal(t, emitted.Id, sold[0].Id)
	assert.Equal(t, uint64(3), sold[0].Payload.(TokenSold).TokenId)
}

func TestManagerEmitAfterCloseIsDropped(t *testing.T) {
	m := NewManager()

	calls := 0
	m.AddEventListener(func(e Event) { calls++ })
	m.Close()
	m.Close()

	e := m.Emit(TokenListedEvent, TokenListed{})
	assert.NotEmpty(t, e.Id)
	assert.Equal(t, 0, calls)
}

func TestNewAssignsUniqueIds(t *testing.T) {
	a := New(TokenListedEvent, nil)
	b := New(TokenListedEvent, nil)

	assert.NotEmpty(t, a.Id)
	assert.NotEqual(t, a.Id, b.Id)
	assert.False(t, a.Time.IsZero())
}
