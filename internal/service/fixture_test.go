package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/internal/repository"
	"github.com/noah-isme/hostel-allocation-api/internal/repository/memory"
)

// world is a small campus: Nilgiri addresses rooms through units, Aravali directly.
type world struct {
	store *memory.Store

	nilgiri models.Hostel
	aravali models.Hostel
	unitA   models.Unit
	unitB   models.Unit

	r101 models.Room // Nilgiri A, capacity 2
	r102 models.Room // Nilgiri A, capacity 5
	r201 models.Room // Nilgiri B, capacity 1
	r1   models.Room // Aravali, capacity 2
	r2   models.Room // Aravali, capacity 1
	r10  models.Room // Aravali, capacity 3

	students []models.StudentDirectoryEntry
}

var degrees = []string{"B.Tech", "M.Tech", ""}

func newWorld(t *testing.T, students int) *world {
	t.Helper()
	w := &world{store: memory.New()}
	err := w.store.WithinTx(context.Background(), func(ctx context.Context, tx repository.AllocationTx) error {
		w.nilgiri = models.Hostel{Name: "Nilgiri", Type: models.HostelTypeUnitBased, Gender: "female"}
		require.NoError(t, tx.CreateHostel(ctx, &w.nilgiri))
		w.aravali = models.Hostel{Name: "Aravali", Type: models.HostelTypeRoomOnly, Gender: "male"}
		require.NoError(t, tx.CreateHostel(ctx, &w.aravali))

		w.unitA = models.Unit{HostelID: w.nilgiri.ID, UnitNumber: "A", Floor: 1}
		require.NoError(t, tx.CreateUnit(ctx, &w.unitA))
		w.unitB = models.Unit{HostelID: w.nilgiri.ID, UnitNumber: "B", Floor: 2}
		require.NoError(t, tx.CreateUnit(ctx, &w.unitB))

		rooms := []struct {
			room     *models.Room
			hostel   string
			unit     *string
			number   string
			capacity int
		}{
			{&w.r101, w.nilgiri.ID, &w.unitA.ID, "101", 2},
			{&w.r102, w.nilgiri.ID, &w.unitA.ID, "102", 5},
			{&w.r201, w.nilgiri.ID, &w.unitB.ID, "201", 1},
			{&w.r1, w.aravali.ID, nil, "1", 2},
			{&w.r2, w.aravali.ID, nil, "2", 1},
			{&w.r10, w.aravali.ID, nil, "10", 3},
		}
		for _, spec := range rooms {
			*spec.room = models.Room{HostelID: spec.hostel, UnitID: spec.unit, RoomNumber: spec.number, Capacity: spec.capacity}
			require.NoError(t, tx.CreateRoom(ctx, spec.room))
		}

		for i := 0; i < students; i++ {
			user := models.User{
				Email:    fmt.Sprintf("student%02d@example.com", i),
				FullName: fmt.Sprintf("Student %02d", i),
				Role:     models.RoleStudent,
				Active:   true,
			}
			require.NoError(t, tx.CreateUser(ctx, &user))
			profile := models.StudentProfile{UserID: user.ID, RollNumber: fmt.Sprintf("R%03d", i)}
			if d := degrees[i%len(degrees)]; d != "" {
				profile.Degree = &d
			}
			require.NoError(t, tx.CreateStudentProfile(ctx, &profile))
			w.students = append(w.students, models.StudentDirectoryEntry{
				StudentProfileID: profile.ID,
				UserID:           user.ID,
				FullName:         user.FullName,
				Email:            user.Email,
				RollNumber:       profile.RollNumber,
				Degree:           profile.Degree,
			})
		}
		return nil
	})
	require.NoError(t, err)
	return w
}

func (w *world) student(i int) string {
	return w.students[i].StudentProfileID
}

func (w *world) room(t *testing.T, id string) models.Room {
	t.Helper()
	var room *models.Room
	require.NoError(t, w.store.View(context.Background(), func(ctx context.Context, r repository.AllocationReader) error {
		var err error
		room, err = r.GetRoom(ctx, id)
		return err
	}))
	return *room
}

func (w *world) profile(t *testing.T, id string) models.StudentProfile {
	t.Helper()
	var profile *models.StudentProfile
	require.NoError(t, w.store.View(context.Background(), func(ctx context.Context, r repository.AllocationReader) error {
		var err error
		profile, err = r.GetStudentProfile(ctx, id)
		return err
	}))
	return *profile
}

func (w *world) activeIn(t *testing.T, roomID string) []models.RoomAllocation {
	t.Helper()
	var active []models.RoomAllocation
	require.NoError(t, w.store.View(context.Background(), func(ctx context.Context, r repository.AllocationReader) error {
		var err error
		active, err = r.ListActiveAllocationsByRooms(ctx, []string{roomID})
		return err
	}))
	return active
}

// assertConsistent runs the verifier over the whole store.
func (w *world) assertConsistent(t *testing.T) {
	t.Helper()
	report, err := NewConsistencyService(w.store, nil).Verify(context.Background())
	require.NoError(t, err)
	require.Empty(t, report.Violations)
}

func (w *world) allocations() *AllocationService {
	return NewAllocationService(w.store, w.store, nil, nil, nil, AllocationConfig{MaxTxRetries: 2}, nil)
}

type countingNotifier struct {
	mu sync.Mutex
	n  int
}

func (c *countingNotifier) OccupancyChanged(context.Context) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *countingNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func strp(s string) *string { return &s }

func intp(n int) *int { return &n }

var warden = &models.JWTClaims{UserID: "warden-1", Role: models.RoleWarden}
