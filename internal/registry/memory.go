package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ZilDuck/nft-marketplace/internal/entity"
	"go.uber.org/zap"
)

var (
	ErrTokenNotFound   = errors.New("token not found")
	ErrNotTokenOwner   = errors.New("from is not the token owner")
	ErrTransferRefused = errors.New("transfer refused")
	ErrNotApproved     = errors.New("spender is not approved for the token")
)

type tokenState struct {
	owner    entity.Principal
	approved entity.Principal
}

// Memory is an in-process asset registry for local networks. It mints
// tokens with a per-collection counter. Transfers are made by spender and
// need its approval, like a safeTransferFrom by the marketplace contract.
type Memory struct {
	spender      entity.Principal
	mu           sync.RWMutex
	tokens       map[entity.TokenKey]*tokenState
	tokenCounter map[entity.Collection]uint64
	operators    map[entity.Collection]entity.Principal
	refused      map[entity.Principal]bool
	hook         func(ctx context.Context)
}

func NewMemory(spender entity.Principal) *Memory {
	return &Memory{
		spender:      spender,
		tokens:       make(map[entity.TokenKey]*tokenState),
		tokenCounter: make(map[entity.Collection]uint64),
		operators:    make(map[entity.Collection]entity.Principal),
		refused:      make(map[entity.Principal]bool),
	}
}

// Mint creates the next token of the collection for owner and returns its id.
func (m *Memory) Mint(collection entity.Collection, owner entity.Principal) (uint64, error) {
	if owner.IsZero() {
		return 0, entity.ErrInvalidPrincipal
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tokenId := m.tokenCounter[collection]
	m.tokenCounter[collection] = tokenId + 1
	m.tokens[entity.NewTokenKey(collection, tokenId)] = &tokenState{owner: owner}

	zap.L().With(
		zap.String("contractAddr", collection.String()),
		zap.Uint64("tokenId", tokenId),
		zap.String("owner", owner.String()),
	).Debug("Registry: Minted token")

	return tokenId, nil
}

func (m *Memory) TokenCounter(collection entity.Collection) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.tokenCounter[collection]
}

// Approve lets spender transfer the token on behalf of its owner.
func (m *Memory) Approve(collection entity.Collection, tokenId uint64, owner, spender entity.Principal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, found := m.tokens[entity.NewTokenKey(collection, tokenId)]
	if !found {
		return ErrTokenNotFound
	}
	if token.owner != owner {
		return ErrNotTokenOwner
	}
	token.approved = spender

	return nil
}

// SetApprovalForAll approves operator for every token of the collection.
func (m *Memory) SetApprovalForAll(collection entity.Collection, operator entity.Principal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.operators[collection] = operator
}

// Refuse makes every transfer to principal fail, like a receiver contract
// that rejects tokens.
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

// OnTransfer installs a hook that runs at the start of every Transfer with
// the caller's context.
func (m *Memory) OnTransfer(hook func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hook = hook
}

func (m *Memory) IsApprovedForTransfer(_ context.Context, collection entity.Collection, tokenId uint64, marketplace entity.Principal) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	token, found := m.tokens[entity.NewTokenKey(collection, tokenId)]
	if !found {
		return false, nil
	}

	return m.isApproved(collection, token, marketplace), nil
}

func (m *Memory) OwnerOf(_ context.Context, collection entity.Collection, tokenId uint64) (entity.Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	token, found := m.tokens[entity.NewTokenKey(collection, tokenId)]
	if !found {
		return entity.NoPrincipal, fmt.Errorf("%w: %s/%d", ErrTokenNotFound, collection, tokenId)
	}

	return token.owner, nil
}

// Transfer moves the token and clears its single-token approval.
func (m *Memory) Transfer(ctx context.Context, collection entity.Collection, tokenId uint64, from, to entity.Principal) error {
	m.mu.RLock()
	hook := m.hook
	m.mu.RUnlock()
	if hook != nil {
		hook(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	token, found := m.tokens[entity.NewTokenKey(collection, tokenId)]
	if !found {
		return fmt.Errorf("%w: %s/%d", ErrTokenNotFound, collection, tokenId)
	}
	if token.owner != from {
		return ErrNotTokenOwner
	}
	if !m.isApproved(collection, token, m.spender) {
		return fmt.Errorf("%w: %s", ErrNotApproved, m.spender)
	}
	if to.IsZero() {
		return entity.ErrInvalidPrincipal
	}
	if m.refused[to] {
		return fmt.Errorf("%w: %s", ErrTransferRefused, to)
	}

	token.owner = to
	token.approved = entity.NoPrincipal

	return nil
}

func (m *Memory) isApproved(collection entity.Collection, token *tokenState, spender entity.Principal) bool {
	if spender.IsZero() {
		return false
	}
	return token.approved == spender || m.operators[collection] == spender
}
