package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/dmitrijs2005/conduit/internal/common"
)

// MaxBcryptCost caps the configured work factor.
const MaxBcryptCost = 14

// bcrypt ignores input past this length, so longer passwords are refused.
const maxPasswordBytes = 72

// PasswordCredential hashes and verifies account passwords with bcrypt.
// Hashing is CPU-bound, so at most a fixed number of hash or compare calls
// run at once; callers wait for a slot or give up when ctx is done.
type PasswordCredential struct {
	cost  int
	slots *semaphore.Weighted

	dummyOnce sync.Once
	dummyHash []byte
}

// NewPasswordCredential returns a credential hashing at cost (clamped to
// [bcrypt.MinCost, MaxBcryptCost]) with at most concurrency parallel
// operations (at least one).
func NewPasswordCredential(cost, concurrency int) *PasswordCredential {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > MaxBcryptCost {
		cost = MaxBcryptCost
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &PasswordCredential{cost: cost, slots: semaphore.NewWeighted(int64(concurrency))}
}

// Cost reports the effective bcrypt cost.
func (p *PasswordCredential) Cost() int { return p.cost }

// Hash returns the bcrypt encoding of plaintext. Failures wrap
// common.ErrHashing; the underlying library error is not exposed.
func (p *PasswordCredential) Hash(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("%w: empty password", common.ErrHashing)
	}
	if len(plaintext) > maxPasswordBytes {
		return "", fmt.Errorf("%w: password longer than %d bytes", common.ErrHashing, maxPasswordBytes)
	}

	if err := p.slots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.slots.Release(1)

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrHashing, err)
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches storedHash. A mismatch is
// (false, nil); only a malformed stored hash is an error (common.ErrVerification).
func (p *PasswordCredential) Verify(ctx context.Context, plaintext, storedHash string) (bool, error) {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer p.slots.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", common.ErrVerification, err)
	}
}

// Burn performs one comparison against a fixed hash at the configured cost.
// Login calls it for unknown emails so that path costs the same as a wrong
// password.
func (p *PasswordCredential) Burn(ctx context.Context, plaintext string) {
	p.dummyOnce.Do(func() {
		p.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("conduit-dummy-password"), p.cost)
	})
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return
	}
	defer p.slots.Release(1)

	_ = bcrypt.CompareHashAndPassword(p.dummyHash, []byte(plaintext))
}
