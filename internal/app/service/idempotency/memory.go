package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/fatflowers/truckstamp/internal/models"

	"gorm.io/gorm"
)

// MemoryLedger is a process-local Ledger. The mutex plays the role of the unique key
// constraint; it is meant for tests and single-process tooling.
type MemoryLedger struct {
	mu     sync.Mutex
	claims map[string]*models.IdempotencyClaim
	lease  time.Duration
	Now    func() time.Time
}

func NewMemoryLedger(lease time.Duration) *MemoryLedger {
	return &MemoryLedger{claims: map[string]*models.IdempotencyClaim{}, lease: lease, Now: time.Now}
}

func (m *MemoryLedger) Claim(_ context.Context, scope models.IdempotencyScope, key, resultRef string) (*ClaimResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	existing, ok := m.claims[key]
	if !ok {
		c := &models.IdempotencyClaim{
			Key: key, Scope: scope, State: models.IdempotencyClaimStateClaimed,
			ResultRef: resultRef, Attempts: 1, CreatedAt: now, UpdatedAt: now,
		}
		m.claims[key] = c
		cp := *c
		return &ClaimResult{Acquired: true, Claim: &cp}, nil
	}
	if !Reclaimable(existing, now, m.lease) {
		cp := *existing
		return &ClaimResult{Claim: &cp}, nil
	}
	existing.State = models.IdempotencyClaimStateClaimed
	existing.ResultRef = resultRef
	existing.Attempts++
	existing.LastError = ""
	existing.UpdatedAt = now
	cp := *existing
	return &ClaimResult{Acquired: true, Reclaimed: true, Claim: &cp}, nil
}

func (m *MemoryLedger) FinalizeTx(ctx context.Context, _ *gorm.DB, key, resultRef string) error {
	return m.Finalize(ctx, key, resultRef)
}

func (m *MemoryLedger) Finalize(_ context.Context, key, resultRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[key]
	if !ok {
		return ErrClaimNotFound
	}
	if c.State != models.IdempotencyClaimStateClaimed || c.ResultRef != resultRef {
		return ErrClaimLost
	}
	now := m.Now()
	c.State = models.IdempotencyClaimStateCompleted
	c.CompletedAt = &now
	c.UpdatedAt = now
	return nil
}

func (m *MemoryLedger) Fail(_ context.Context, key, resultRef string, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[key]
	if !ok || c.State != models.IdempotencyClaimStateClaimed || c.ResultRef != resultRef {
		return nil
	}
	c.State = models.IdempotencyClaimStateFailed
	if cause != nil {
		c.LastError = cause.Error()
	}
	c.UpdatedAt = m.Now()
	return nil
}

func (m *MemoryLedger) Get(_ context.Context, key string) (*models.IdempotencyClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[key]
	if !ok {
		return nil, ErrClaimNotFound
	}
	cp := *c
	return &cp, nil
}

// Len returns the number of distinct keys ever claimed.
func (m *MemoryLedger) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.claims)
}
