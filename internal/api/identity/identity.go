package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/FACorreiaa/minimarket-auth/internal/types"
)

// DefaultPerPage is the page size used when walking the whole identity store.
const DefaultPerPage = 1000

// Store is the credential store that sits next to the profile table.
// Implementations never delete identities.
type Store interface {
	// CreateIdentity returns types.ErrIdentityExists when the email is taken
	// and types.ErrWeakPassword when the store refuses the password.
	CreateIdentity(ctx context.Context, email, password string, meta types.IdentityMetadata) (*types.Identity, error)
	// VerifyPassword returns types.ErrUnauthenticated for an unknown email or a wrong password.
	VerifyPassword(ctx context.Context, email, password string) (*types.Identity, *types.Session, error)
	// ListIdentities returns one page, numbered from 1, in a stable order.
	ListIdentities(ctx context.Context, page, perPage int) ([]types.Identity, error)
	// UpdateIdentity overwrites the non-nil fields of upd. Unknown ids yield types.ErrNotFound.
	UpdateIdentity(ctx context.Context, id string, upd types.IdentityUpdate) (*types.Identity, error)
}

// walk calls fn for every page until a short page is seen or fn asks to stop.
func walk(ctx context.Context, s Store, perPage int, fn func([]types.Identity) bool) error {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := s.ListIdentities(ctx, page, perPage)
		if err != nil {
			return fmt.Errorf("list identities page %d: %w", page, err)
		}
		if !fn(batch) || len(batch) < perPage {
			return nil
		}
	}
}

// ListAll collects every identity in the store.
func ListAll(ctx context.Context, s Store, perPage int) ([]types.Identity, error) {
	var all []types.Identity
	err := walk(ctx, s, perPage, func(batch []types.Identity) bool {
		all = append(all, batch...)
		return true
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// FindByEmail scans the store page by page and stops at the first match.
// It returns types.ErrNotFound when no identity carries the email.
func FindByEmail(ctx context.Context, s Store, email string, perPage int) (*types.Identity, error) {
	var found *types.Identity
	err := walk(ctx, s, perPage, func(batch []types.Identity) bool {
		for i := range batch {
			if strings.EqualFold(batch[i].Email, email) {
				found = &batch[i]
				return false
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("identity with email %s: %w", email, types.ErrNotFound)
	}
	return found, nil
}
