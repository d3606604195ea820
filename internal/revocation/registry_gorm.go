package revocation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// revocationStateRow is the durable row backing GormRegistry, mirroring one
// DID's current Status.
//
// Database Schema:
//   - did: primary key, the revoked or active agent DID
//   - status: "active" | "revoked" | "pending"
//   - revoked_at: set when status transitions to revoked
//   - reason: free-text revocation reason, propagated to descendants with
//     the ancestor DID annotated by the caller
type revocationStateRow struct {
	DID       string `gorm:"primaryKey;type:varchar(512)"`
	Status    string `gorm:"index:idx_revocation_status;type:varchar(20);not null"`
	RevokedAt time.Time
	Reason    string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (revocationStateRow) TableName() string { return "revocation_states" }

// Registry is the durable record of revocation state, distinct from
// StatusCache: the registry is the source of truth, the cache is a bounded
// staleness window on top of it (spec.md §4.5 step 4).
type Registry interface {
	Get(ctx context.Context, did string) (State, error)
	Put(ctx context.Context, state State) error
}

// MemoryRegistry is the default in-process Registry, used when no durable
// backend is configured; unknown DIDs are implicitly active. Reads and
// writes run concurrently across independent requests (spec.md §5), so the
// map is guarded by a RWMutex, the same way pairwise.MemoryRegistry guards
// its own state.
type MemoryRegistry struct {
	mu     sync.RWMutex
	states map[string]State
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{states: make(map[string]State)}
}

func (r *MemoryRegistry) Get(_ context.Context, did string) (State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.states[did]; ok {
		return s, nil
	}
	return State{DID: did, Status: StatusActive}, nil
}

func (r *MemoryRegistry) Put(_ context.Context, state State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.DID] = state
	return nil
}

// GormRegistry implements Registry on Postgres (or any gorm.io dialect) for
// deployments that need revocation state to survive a process restart.
type GormRegistry struct {
	db *gorm.DB
}

func NewGormRegistry(db *gorm.DB) (*GormRegistry, error) {
	if db == nil {
		return nil, fmt.Errorf("revocation: database cannot be nil")
	}
	if err := db.AutoMigrate(&revocationStateRow{}); err != nil {
		return nil, fmt.Errorf("revocation: auto-migration failed: %w", err)
	}
	return &GormRegistry{db: db}, nil
}

// NewPostgresRegistry opens a Postgres connection via gorm's postgres
// dialect and wraps it in a GormRegistry, for deployments that don't
// otherwise need a *gorm.DB of their own.
func NewPostgresRegistry(dsn string) (*GormRegistry, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("revocation: postgres connect failed: %w", err)
	}
	return NewGormRegistry(db)
}

func (r *GormRegistry) Get(ctx context.Context, did string) (State, error) {
	var row revocationStateRow
	err := r.db.WithContext(ctx).Where("did = ?", did).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return State{DID: did, Status: StatusActive}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("revocation: get failed: %w", err)
	}
	return State{
		DID:       row.DID,
		Status:    Status(row.Status),
		RevokedAt: row.RevokedAt.Unix(),
		Reason:    row.Reason,
	}, nil
}

func (r *GormRegistry) Put(ctx context.Context, state State) error {
	row := revocationStateRow{
		DID:       state.DID,
		Status:    string(state.Status),
		RevokedAt: time.Unix(state.RevokedAt, 0).UTC(),
		Reason:    state.Reason,
		UpdatedAt: time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).Save(&row).Error
	if err != nil {
		return fmt.Errorf("revocation: put failed: %w", err)
	}
	return nil
}
