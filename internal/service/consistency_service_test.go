package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
)

func TestVerifyHealthyAfterMixedOperations(t *testing.T) {
	w := newWorld(t, 4)
	ctx := context.Background()
	a := w.mustAllocate(t, dto.AllocateRequest{RoomID: w.r1.ID, StudentProfileID: w.student(0), BedNumber: 1})
	w.mustAllocate(t, dto.AllocateRequest{RoomID: w.r1.ID, StudentProfileID: w.student(1), BedNumber: 2})
	w.mustAllocate(t, dto.AllocateRequest{RoomID: w.r102.ID, StudentProfileID: w.student(2), BedNumber: 5, UnitID: &w.unitA.ID})
	_, err := w.allocations().Reassign(ctx, w.student(2), dto.ReassignRequest{RoomID: w.r201.ID, BedNumber: 1, UnitID: &w.unitB.ID}, nil)
	require.NoError(t, err)
	require.NoError(t, w.allocations().Deallocate(ctx, a.ID, nil))
	_, err = w.lifecycle(nil).Deactivate(ctx, w.r1.ID, nil)
	require.NoError(t, err)

	report, err := NewConsistencyService(w.store, nil).Verify(ctx)
	require.NoError(t, err)
	assert.True(t, report.Healthy())
	assert.Equal(t, 2, report.CheckedHostels)
	assert.Equal(t, 6, report.CheckedRooms)
	assert.Equal(t, 1, report.CheckedAllocations)
	assert.False(t, report.CheckedAt.IsZero())
}

func rules(report *models.ConsistencyReport) []string {
	out := make([]string, 0, len(report.Violations))
	for _, v := range report.Violations {
		out = append(out, v.Rule)
	}
	return out
}

func TestCheckConsistencyDetectsDrift(t *testing.T) {
	unitA := "unit-a"
	hostels := []models.Hostel{
		{ID: "h-unit", Type: models.HostelTypeUnitBased},
		{ID: "h-room", Type: models.HostelTypeRoomOnly},
	}
	units := []models.Unit{{ID: unitA, HostelID: "h-unit", UnitNumber: "A"}}
	allocFor := func(id, room, student string, bed int, unit *string, hostel string) models.RoomAllocation {
		return models.RoomAllocation{ID: id, HostelID: hostel, RoomID: room, UnitID: unit, StudentProfileID: student, BedNumber: bed, Status: models.AllocationStatusActive}
	}

	cases := []struct {
		name string
		snap consistencySnapshot
		want []string
	}{
		{
			name: "counter drift",
			snap: consistencySnapshot{
				rooms: []models.Room{{ID: "r1", HostelID: "h-room", Capacity: 2, Occupancy: 2, Status: models.RoomStatusActive}},
			},
			want: []string{models.RuleOccupancyCount},
		},
		{
			name: "over capacity",
			snap: consistencySnapshot{
				rooms:  []models.Room{{ID: "r1", HostelID: "h-room", Capacity: 1, Occupancy: 2, Status: models.RoomStatusActive}},
				active: []models.RoomAllocation{allocFor("a1", "r1", "s1", 1, nil, "h-room"), allocFor("a2", "r1", "s2", 1, nil, "h-room")},
				profiles: []models.StudentProfile{
					{ID: "s1", CurrentRoomAllocationID: strp("a1")},
					{ID: "s2", CurrentRoomAllocationID: strp("a2")},
				},
				referenced: []models.RoomAllocation{allocFor("a1", "r1", "s1", 1, nil, "h-room"), allocFor("a2", "r1", "s2", 1, nil, "h-room")},
			},
			want: []string{models.RuleBedUnique, models.RuleCapacity},
		},
		{
			name: "student twice",
			snap: consistencySnapshot{
				rooms:      []models.Room{{ID: "r1", HostelID: "h-room", Capacity: 2, Occupancy: 2, Status: models.RoomStatusActive}},
				active:     []models.RoomAllocation{allocFor("a1", "r1", "s1", 1, nil, "h-room"), allocFor("a2", "r1", "s1", 2, nil, "h-room")},
				profiles:   []models.StudentProfile{{ID: "s1", CurrentRoomAllocationID: strp("a1")}},
				referenced: []models.RoomAllocation{allocFor("a1", "r1", "s1", 1, nil, "h-room")},
			},
			want: []string{models.RuleStudentUnique, models.RuleBackReference},
		},
		{
			name: "unit addressing",
			snap: consistencySnapshot{
				rooms: []models.Room{
					{ID: "r1", HostelID: "h-unit", Capacity: 1, Status: models.RoomStatusActive},
					{ID: "r2", HostelID: "h-room", UnitID: &unitA, Capacity: 1, Status: models.RoomStatusActive},
				},
			},
			want: []string{models.RuleUnitAddressing, models.RuleUnitAddressing},
		},
		{
			name: "allocation unit differs from room",
			snap: consistencySnapshot{
				rooms:      []models.Room{{ID: "r1", HostelID: "h-unit", UnitID: &unitA, Capacity: 2, Occupancy: 1, Status: models.RoomStatusActive}},
				active:     []models.RoomAllocation{allocFor("a1", "r1", "s1", 3, nil, "h-unit")},
				profiles:   []models.StudentProfile{{ID: "s1", CurrentRoomAllocationID: strp("a1")}},
				referenced: []models.RoomAllocation{allocFor("a1", "r1", "s1", 3, nil, "h-unit")},
			},
			want: []string{models.RuleUnitAddressing, models.RuleBedRange},
		},
		{
			name: "inactive room still occupied",
			snap: consistencySnapshot{
				rooms:      []models.Room{{ID: "r1", HostelID: "h-room", Capacity: 2, Occupancy: 1, Status: models.RoomStatusInactive}},
				active:     []models.RoomAllocation{allocFor("a1", "r1", "s1", 1, nil, "h-room")},
				profiles:   []models.StudentProfile{{ID: "s1", CurrentRoomAllocationID: strp("a1")}},
				referenced: []models.RoomAllocation{allocFor("a1", "r1", "s1", 1, nil, "h-room")},
			},
			want: []string{models.RuleInactiveEmpty, models.RuleOriginalCapacity},
		},
		{
			name: "dangling back-reference",
			snap: consistencySnapshot{
				rooms: []models.Room{{ID: "r1", HostelID: "h-room", Capacity: 2, Status: models.RoomStatusActive}},
				profiles: []models.StudentProfile{
					{ID: "s1", CurrentRoomAllocationID: strp("gone")},
					{ID: "s2", CurrentRoomAllocationID: strp("old")},
				},
				referenced: []models.RoomAllocation{{ID: "old", RoomID: "r1", StudentProfileID: "s2", Status: models.AllocationStatusVacated}},
			},
			want: []string{models.RuleBackReference, models.RuleBackReference},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.snap.hostels = hostels
			tc.snap.units = units
			report := checkConsistency(tc.snap)
			assert.ElementsMatch(t, tc.want, rules(report))
			assert.False(t, report.Healthy())
		})
	}
}
