package identity

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/minimarket-auth/internal/types"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store for tests and local runs without a database.
type MemoryStore struct {
	mu        sync.Mutex
	order     []string
	byID      map[string]*memoryIdentity
	byEmail   map[string]string
	tokens    *TokenIssuer
	listCalls int
}

type memoryIdentity struct {
	ident    types.Identity
	password string
}

// NewMemoryStore signs sessions with tokens when it is non-nil and hands out opaque tokens otherwise.
func NewMemoryStore(tokens *TokenIssuer) *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*memoryIdentity),
		byEmail: make(map[string]string),
		tokens:  tokens,
	}
}

func (m *MemoryStore) CreateIdentity(_ context.Context, email, password string, meta types.IdentityMetadata) (*types.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(email)
	if _, ok := m.byEmail[key]; ok {
		return nil, fmt.Errorf("email %s: %w", email, types.ErrIdentityExists)
	}
	if password == "" {
		return nil, fmt.Errorf("empty password: %w", types.ErrWeakPassword)
	}

	rec := &memoryIdentity{
		ident: types.Identity{
			ID:        uuid.NewString(),
			Email:     email,
			Metadata:  meta,
			CreatedAt: time.Now().UTC(),
		},
		password: password,
	}
	m.byID[rec.ident.ID] = rec
	m.byEmail[key] = rec.ident.ID
	m.order = append(m.order, rec.ident.ID)

	out := rec.ident
	return &out, nil
}

func (m *MemoryStore) VerifyPassword(_ context.Context, email, password string) (*types.Identity, *types.Session, error) {
	m.mu.Lock()
	id, ok := m.byEmail[strings.ToLower(email)]
	var rec memoryIdentity
	if ok {
		rec = *m.byID[id]
	}
	m.mu.Unlock()

	if !ok || subtle.ConstantTimeCompare([]byte(rec.password), []byte(password)) != 1 {
		return nil, nil, fmt.Errorf("invalid credentials: %w", types.ErrUnauthenticated)
	}

	if m.tokens != nil {
		session, err := m.tokens.Issue(&rec.ident)
		if err != nil {
			return nil, nil, err
		}
		return &rec.ident, session, nil
	}
	return &rec.ident, &types.Session{AccessToken: uuid.NewString(), TokenType: "bearer", ExpiresIn: 3600}, nil
}

func (m *MemoryStore) ListIdentities(_ context.Context, page, perPage int) ([]types.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++

	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	start := (page - 1) * perPage
	if start >= len(m.order) {
		return []types.Identity{}, nil
	}
	end := start + perPage
	if end > len(m.order) {
		end = len(m.order)
	}

	out := make([]types.Identity, 0, end-start)
	for _, id := range m.order[start:end] {
		out = append(out, m.byID[id].ident)
	}
	return out, nil
}

func (m *MemoryStore) UpdateIdentity(_ context.Context, id string, upd types.IdentityUpdate) (*types.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("identity %s: %w", id, types.ErrNotFound)
	}
	if upd.Password != nil {
		if *upd.Password == "" {
			return nil, fmt.Errorf("empty password: %w", types.ErrWeakPassword)
		}
		rec.password = *upd.Password
	}
	if upd.Metadata != nil {
		rec.ident.Metadata = *upd.Metadata
	}

	out := rec.ident
	return &out, nil
}

// Len reports how many identities are stored.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// ListCalls reports how many pages have been requested so far.
func (m *MemoryStore) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}
