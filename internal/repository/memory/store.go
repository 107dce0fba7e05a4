// Package memory provides a transactional in-memory allocation store. Every unit of work runs
// against a private copy of the data set that replaces the shared state only on commit, so a
// failing transaction leaves nothing behind. Uniqueness of active beds and students is checked on
// write like the partial indexes of the PostgreSQL schema.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/internal/repository"
)

type state struct {
	hostels     map[string]models.Hostel
	units       map[string]models.Unit
	rooms       map[string]models.Room
	allocations map[string]models.RoomAllocation
	profiles    map[string]models.StudentProfile
	users       map[string]models.User
}

func newState() *state {
	return &state{
		hostels:     map[string]models.Hostel{},
		units:       map[string]models.Unit{},
		rooms:       map[string]models.Room{},
		allocations: map[string]models.RoomAllocation{},
		profiles:    map[string]models.StudentProfile{},
		users:       map[string]models.User{},
	}
}

func (s *state) clone() *state {
	out := &state{
		hostels:     make(map[string]models.Hostel, len(s.hostels)),
		units:       make(map[string]models.Unit, len(s.units)),
		rooms:       make(map[string]models.Room, len(s.rooms)),
		allocations: make(map[string]models.RoomAllocation, len(s.allocations)),
		profiles:    make(map[string]models.StudentProfile, len(s.profiles)),
		users:       make(map[string]models.User, len(s.users)),
	}
	for k, v := range s.hostels {
		out.hostels[k] = v
	}
	for k, v := range s.units {
		out.units[k] = v
	}
	for k, v := range s.rooms {
		out.rooms[k] = v
	}
	for k, v := range s.allocations {
		out.allocations[k] = v
	}
	for k, v := range s.profiles {
		out.profiles[k] = v
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	return out
}

// validate mirrors the CHECK constraints of the rooms table and additionally asserts that
// the cached counter equals the number of active allocations.
func (s *state) validate() error {
	counts := make(map[string]int, len(s.rooms))
	for _, a := range s.allocations {
		if a.Status == models.AllocationStatusActive {
			counts[a.RoomID]++
		}
	}
	for id, room := range s.rooms {
		if room.Occupancy < 0 || room.Occupancy > room.Capacity {
			return &repository.ConstraintError{
				Constraint: repository.ConstraintOccupancy,
				Err:        fmt.Errorf("room %s occupancy %d outside [0, %d]", id, room.Occupancy, room.Capacity),
			}
		}
		if room.Status == models.RoomStatusInactive && room.Occupancy != 0 {
			return &repository.ConstraintError{
				Constraint: repository.ConstraintOccupancy,
				Err:        fmt.Errorf("inactive room %s has occupancy %d", id, room.Occupancy),
			}
		}
		if counts[id] != room.Occupancy {
			return fmt.Errorf("memory store: room %s occupancy %d does not match %d active allocations", id, room.Occupancy, counts[id])
		}
	}
	return nil
}

// Store is safe for concurrent use. Writers are serialised; readers share the committed state.
type Store struct {
	mu    sync.RWMutex
	state *state

	auditMu sync.Mutex
	audit   []models.AuditLog
}

// New returns an empty store.
func New() *Store {
	return &Store{state: newState()}
}

// WithinTx runs fn against a private copy and publishes it when fn and the commit checks succeed.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.AllocationTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(ctx, &txn{reader: reader{st: working}}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := working.validate(); err != nil {
		return err
	}
	s.state = working
	return nil
}

// View runs fn against the committed state.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, r repository.AllocationReader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(ctx, &reader{st: s.state})
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// CreateAuditLog records an audit entry.
func (s *Store) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	s.audit = append(s.audit, *log)
	return nil
}

// AuditLogs returns a copy of the recorded audit entries.
func (s *Store) AuditLogs() []models.AuditLog {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	out := make([]models.AuditLog, len(s.audit))
	copy(out, s.audit)
	return out
}
