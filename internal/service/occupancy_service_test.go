package service

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
	"github.com/noah-isme/hostel-allocation-api/pkg/jobs"
)

type cacheRepoStub struct {
	mu    sync.Mutex
	store map[string][]byte
}

func (s *cacheRepoStub) Get(_ context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *cacheRepoStub) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *cacheRepoStub) DeleteByPattern(_ context.Context, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.store {
		if ok, _ := path.Match(pattern, key); ok {
			delete(s.store, key)
		}
	}
	return nil
}

func (s *cacheRepoStub) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.store[key]
	return ok
}

type enqueuerStub struct {
	jobs []jobs.Job
}

func (e *enqueuerStub) Enqueue(job jobs.Job) (bool, error) {
	e.jobs = append(e.jobs, job)
	return true, nil
}

func TestProjectSheetOrdersRoomsNaturally(t *testing.T) {
	w := newWorld(t, 1)
	ctx := context.Background()
	placed := w.mustAllocate(t, dto.AllocateRequest{RoomID: w.r10.ID, StudentProfileID: w.student(0), BedNumber: 2})
	_, err := w.lifecycle(nil).Deactivate(ctx, w.r2.ID, nil)
	require.NoError(t, err)

	rows, err := NewOccupancyService(w.store, nil, OccupancyConfig{}, nil).ProjectSheet(ctx, w.aravali.ID)
	require.NoError(t, err)

	type bed struct {
		room string
		bed  int
	}
	got := make([]bed, len(rows))
	for i, r := range rows {
		got[i] = bed{r.RoomNumber, r.BedNumber}
		assert.Equal(t, "Aravali", r.HostelName)
		assert.Empty(t, r.UnitNumber)
	}
	assert.Equal(t, []bed{{"1", 1}, {"1", 2}, {"2", 0}, {"10", 1}, {"10", 2}, {"10", 3}}, got)

	assert.Equal(t, models.RoomStatusInactive, rows[2].RoomStatus)
	assert.True(t, rows[2].Vacant())
	occupied := rows[4]
	assert.Equal(t, placed.ID, occupied.AllocationID)
	assert.Equal(t, w.students[0].FullName, occupied.StudentName)
	assert.Equal(t, w.students[0].RollNumber, occupied.RollNumber)
	assert.Equal(t, w.students[0].Email, occupied.Email)
	assert.Equal(t, "B.Tech", occupied.Degree)
	assert.Equal(t, 1, occupied.Occupancy)
	assert.True(t, rows[3].Vacant())
}

func TestProjectSheetGroupsByUnit(t *testing.T) {
	w := newWorld(t, 0)
	rows, err := NewOccupancyService(w.store, nil, OccupancyConfig{}, nil).ProjectSheet(context.Background(), w.nilgiri.ID)
	require.NoError(t, err)
	require.Len(t, rows, 8)
	assert.Equal(t, "A", rows[0].UnitNumber)
	require.NotNil(t, rows[0].Floor)
	assert.Equal(t, 1, *rows[0].Floor)
	assert.Equal(t, "101", rows[0].RoomNumber)
	assert.Equal(t, "102", rows[2].RoomNumber)
	assert.Equal(t, "B", rows[7].UnitNumber)
	assert.Equal(t, "201", rows[7].RoomNumber)
}

func TestProjectSheetUnknownHostel(t *testing.T) {
	w := newWorld(t, 0)
	_, err := NewOccupancyService(w.store, nil, OccupancyConfig{}, nil).ProjectSheet(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrHostelNotFound)
}

func TestProjectAllocationSummary(t *testing.T) {
	w := newWorld(t, 4)
	ctx := context.Background()
	catalog := NewRoomCatalogService(w.store, nil, nil, nil, nil)
	archived, err := catalog.CreateHostel(ctx, dto.CreateHostelRequest{Name: "Zanskar", Type: models.HostelTypeRoomOnly, Gender: "male", Rooms: []dto.RoomSpec{{RoomNumber: "1", Capacity: 1}}}, nil)
	require.NoError(t, err)
	_, err = w.lifecycle(nil).ArchiveHostel(ctx, archived.ID, true, nil)
	require.NoError(t, err)

	w.mustAllocate(t, dto.AllocateRequest{RoomID: w.r1.ID, StudentProfileID: w.student(0), BedNumber: 1})
	w.mustAllocate(t, dto.AllocateRequest{RoomID: w.r101.ID, StudentProfileID: w.student(1), BedNumber: 1, UnitID: &w.unitA.ID})
	w.mustAllocate(t, dto.AllocateRequest{RoomID: w.r10.ID, StudentProfileID: w.student(2), BedNumber: 1})
	w.mustAllocate(t, dto.AllocateRequest{RoomID: w.r102.ID, StudentProfileID: w.student(3), BedNumber: 1, UnitID: &w.unitA.ID})

	summary, err := NewOccupancyService(w.store, nil, OccupancyConfig{}, nil).ProjectAllocationSummary(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"Aravali", "Nilgiri"}, summary.Hostels)
	require.Len(t, summary.Rows, 3)
	assert.Equal(t, models.SummaryRow{Degree: "B.Tech", Counts: map[string]int{"Aravali": 1, "Nilgiri": 1}, Total: 2}, summary.Rows[0])
	assert.Equal(t, models.SummaryRow{Degree: "M.Tech", Counts: map[string]int{"Aravali": 0, "Nilgiri": 1}, Total: 1}, summary.Rows[1])
	assert.Equal(t, models.SummaryRow{Degree: models.UnknownDegree, Counts: map[string]int{"Aravali": 1, "Nilgiri": 0}, Total: 1}, summary.Rows[2])
	assert.Equal(t, map[string]int{"Aravali": 2, "Nilgiri": 2}, summary.ColumnTotals)
	assert.Equal(t, 4, summary.GrandTotal)
}

func TestSummarizeKeepsUnknownLast(t *testing.T) {
	zeta, alpha := "Zoology", "Arts"
	summary := summarize(
		[]models.Hostel{{Name: "Kaveri"}, {Name: "Empty"}},
		[]models.SummaryEntry{
			{Degree: nil, HostelName: "Kaveri"},
			{Degree: &zeta, HostelName: "Kaveri"},
			{Degree: &alpha, HostelName: "Archived"},
		},
	)
	degrees := []string{}
	for _, r := range summary.Rows {
		degrees = append(degrees, r.Degree)
	}
	assert.Equal(t, []string{"Arts", "Zoology", models.UnknownDegree}, degrees)
	assert.Equal(t, []string{"Archived", "Empty", "Kaveri"}, summary.Hostels)
	assert.Equal(t, 0, summary.ColumnTotals["Empty"])
	assert.Equal(t, 3, summary.GrandTotal)
}

func TestSummaryCacheInvalidatedOnChange(t *testing.T) {
	w := newWorld(t, 2)
	ctx := context.Background()
	repo := &cacheRepoStub{}
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	occupancy := NewOccupancyService(w.store, cache, OccupancyConfig{SummaryTTL: time.Minute}, nil)
	warm := &enqueuerStub{}
	occupancy.UseWarmQueue(warm)
	alloc := NewAllocationService(w.store, nil, occupancy, nil, nil, AllocationConfig{}, nil)

	first, err := occupancy.ProjectAllocationSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, first.GrandTotal)
	_, err = occupancy.ProjectSheet(ctx, w.aravali.ID)
	require.NoError(t, err)
	assert.True(t, repo.has(summaryCacheKey))
	assert.True(t, repo.has(sheetCachePrefix+w.aravali.ID))

	_, err = alloc.Allocate(ctx, dto.AllocateRequest{RoomID: w.r1.ID, StudentProfileID: w.student(0), BedNumber: 1}, nil)
	require.NoError(t, err)
	assert.False(t, repo.has(summaryCacheKey))
	assert.False(t, repo.has(sheetCachePrefix+w.aravali.ID))
	require.Len(t, warm.jobs, 1)
	assert.Equal(t, JobTypeWarmSummary, warm.jobs[0].Type)
	assert.Equal(t, summaryCacheKey, warm.jobs[0].Key)

	require.NoError(t, occupancy.WarmSummary(ctx, warm.jobs[0]))
	assert.True(t, repo.has(summaryCacheKey))
	second, err := occupancy.ProjectAllocationSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, second.GrandTotal)
}

func TestOccupancyChangedWithoutCacheSkipsWarmup(t *testing.T) {
	w := newWorld(t, 0)
	occupancy := NewOccupancyService(w.store, nil, OccupancyConfig{}, nil)
	warm := &enqueuerStub{}
	occupancy.UseWarmQueue(warm)

	occupancy.OccupancyChanged(context.Background())
	assert.Empty(t, warm.jobs)
	assert.NoError(t, occupancy.WarmSummary(context.Background(), jobs.Job{Type: "other"}))
}

func TestNaturalLess(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"2", "10", true},
		{"10", "2", false},
		{"A2", "A10", true},
		{"A10", "B1", true},
		{"007", "8", true},
		{"101", "101", false},
		{"101", "101A", true},
		{"G-12", "G-3", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, naturalLess(tc.a, tc.b), "%s < %s", tc.a, tc.b)
	}
}
