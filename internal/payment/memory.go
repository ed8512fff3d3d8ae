package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ZilDuck/nft-marketplace/internal/entity"
	"go.uber.org/zap"
)

var ErrPaymentRefused = errors.New("payment refused")

// Memory credits payouts to in-process accounts. Principals can be marked as
// refusing payments, which is how local networks exercise failed withdrawals.
type Memory struct {
	mu       sync.RWMutex
	balances map[entity.Principal]uint64
	refused  map[entity.Principal]bool
	hook     func(ctx context.Context)
}

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[entity.Principal]uint64),
		refused:  make(map[entity.Principal]bool),
	}
}

func (m *Memory) PayOut(ctx context.Context, to entity.Principal, amount uint64) error {
	m.mu.RLock()
	hook := m.hook
	m.mu.RUnlock()
	if hook != nil {
		hook(ctx)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.refused[to] {
		return fmt.Errorf("%w: %s", ErrPaymentRefused, to)
	}
	m.balances[to] += amount

	zap.L().With(zap.String("to", to.String()), zap.Uint64("amount", amount)).Debug("Payment: Paid out")

	return nil
}

func (m *Memory) Balance(principal entity.Principal) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.balances[principal]
}

func (m *Memory) Refuse(principal entity.Principal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refused[principal] = true
}

func (m *Memory) Accept(principal entity.Principal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.refused, principal)
}

// OnPayOut installs a hook that runs at the start of every PayOut with the
// caller's context.
func (m *Memory) OnPayOut(hook func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hook = hook
}
