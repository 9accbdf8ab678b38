package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/srgjo27/custodia/internal/core/domain"
	"github.com/srgjo27/custodia/internal/core/ports"
)

// UserLookup resolves visitors by document number while the operator types.
// Each Search cancels the one before it and only the latest may return a user.
type UserLookup struct {
	directory ports.UserDirectory
	debounce  time.Duration

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

func NewUserLookup(directory ports.UserDirectory, debounce time.Duration) *UserLookup {
	return &UserLookup{directory: directory, debounce: debounce}
}

func (u *UserLookup) Search(ctx context.Context, documentNumber string) (*domain.User, error) {
	documentNumber = strings.TrimSpace(documentNumber)
	if !domain.ValidDocumentNumber(documentNumber) {
		return nil, ErrInvalidDocument
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	u.mu.Lock()
	if u.cancel != nil {
		u.cancel()
	}
	u.seq++
	seq := u.seq
	u.cancel = cancel
	u.mu.Unlock()

	if u.debounce > 0 {
		timer := time.NewTimer(u.debounce)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			if u.superseded(seq) {
				return nil, ErrLookupSuperseded
			}
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	user, err := u.directory.SearchUser(ctx, documentNumber)
	if u.superseded(seq) {
		return nil, ErrLookupSuperseded
	}
	if err != nil {
		return nil, fmt.Errorf("search user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Resolve looks a user up directly, outside the typing sequence. Confirm uses it
// so an in-flight search cannot supersede the user being checked in.
func (u *UserLookup) Resolve(ctx context.Context, documentNumber string) (*domain.User, error) {
	documentNumber = strings.TrimSpace(documentNumber)
	if !domain.ValidDocumentNumber(documentNumber) {
		return nil, ErrInvalidDocument
	}

	user, err := u.directory.SearchUser(ctx, documentNumber)
	if err != nil {
		return nil, fmt.Errorf("search user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (u *UserLookup) superseded(seq uint64) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return seq != u.seq
}
