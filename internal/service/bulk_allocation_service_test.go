package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/internal/repository"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
)

func (w *world) bulk(cfg BulkConfig) *BulkAllocationService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.MinCost
	}
	return NewBulkAllocationService(w.store, w.store, nil, nil, nil, cfg, nil)
}

func (w *world) nilgiriRow(student int, room string, bed int) dto.BulkAllocationRow {
	return dto.BulkAllocationRow{Email: w.students[student].Email, HostelID: w.nilgiri.ID, UnitNumber: "A", RoomNumber: room, BedNumber: bed}
}

func (w *world) aravaliRow(student int, room string, bed int) dto.BulkAllocationRow {
	return dto.BulkAllocationRow{Email: w.students[student].Email, HostelID: w.aravali.ID, RoomNumber: room, BedNumber: bed}
}

func failedCodes(result *dto.BulkAllocationResult) map[int]string {
	out := make(map[int]string, len(result.Failed))
	for _, f := range result.Failed {
		out[f.Row] = f.Code
	}
	return out
}

func TestBulkPartialFailure(t *testing.T) {
	w := newWorld(t, 5)
	notifier := &countingNotifier{}
	svc := NewBulkAllocationService(w.store, w.store, notifier, nil, nil, BulkConfig{}, nil)

	result, err := svc.Process(context.Background(), dto.BulkAllocationRequest{Rows: []dto.BulkAllocationRow{
		w.nilgiriRow(0, "102", 1),
		w.nilgiriRow(1, "102", 2),
		w.nilgiriRow(2, "102", 9),
		w.nilgiriRow(3, "102", 4),
		w.nilgiriRow(4, "102", 5),
	}}, warden)
	require.NoError(t, err)

	assert.Equal(t, dto.BulkStatusPartial, result.Status)
	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 4, result.SucceededCount)
	assert.Equal(t, map[int]string{3: appErrors.ErrInvalidBed.Code}, failedCodes(result))
	rows := []int{}
	for _, s := range result.Succeeded {
		rows = append(rows, s.Row)
		assert.Equal(t, dto.BulkRowCreated, s.Action)
	}
	assert.Equal(t, []int{1, 2, 4, 5}, rows)
	assert.Equal(t, w.nilgiriRow(2, "102", 9), result.Failed[0].Input)

	assert.Equal(t, 4, w.room(t, w.r102.ID).Occupancy)
	assert.Equal(t, 1, notifier.count())
	w.assertConsistent(t)
}

func TestBulkSameBedDoubleClaim(t *testing.T) {
	w := newWorld(t, 2)
	result, err := w.bulk(BulkConfig{}).Process(context.Background(), dto.BulkAllocationRequest{Rows: []dto.BulkAllocationRow{
		w.aravaliRow(0, "10", 2),
		w.aravaliRow(1, "10", 2),
	}}, nil)
	require.NoError(t, err)

	assert.Equal(t, dto.BulkStatusPartial, result.Status)
	require.Len(t, result.Succeeded, 1)
	assert.Equal(t, 1, result.Succeeded[0].Row)
	assert.Equal(t, map[int]string{2: appErrors.ErrBedOccupied.Code}, failedCodes(result))
	assert.Equal(t, 1, w.room(t, w.r10.ID).Occupancy)
	w.assertConsistent(t)
}

func TestBulkRunningDeltaStopsOverflow(t *testing.T) {
	w := newWorld(t, 3)
	result, err := w.bulk(BulkConfig{}).Process(context.Background(), dto.BulkAllocationRequest{Rows: []dto.BulkAllocationRow{
		w.aravaliRow(0, "1", 1),
		w.aravaliRow(1, "1", 2),
		w.aravaliRow(2, "1", 2),
	}}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.SucceededCount)
	assert.Equal(t, map[int]string{3: appErrors.ErrRoomFull.Code}, failedCodes(result))
	assert.Equal(t, 2, w.room(t, w.r1.ID).Occupancy)
	w.assertConsistent(t)
}

func TestBulkResolutionFailures(t *testing.T) {
	w := newWorld(t, 6)
	ghost := w.aravaliRow(0, "1", 1)
	ghost.Email = "ghost@example.com"
	noUnit := w.nilgiriRow(1, "101", 1)
	noUnit.UnitNumber = ""
	badUnit := w.nilgiriRow(2, "101", 1)
	badUnit.UnitNumber = "Z"
	unitOnRoomOnly := w.aravaliRow(3, "1", 1)
	unitOnRoomOnly.UnitNumber = "A"
	noHostel := w.aravaliRow(4, "1", 1)
	noHostel.HostelID = "missing"
	invalidEmail := w.aravaliRow(5, "1", 1)
	invalidEmail.Email = "not-an-email"

	result, err := w.bulk(BulkConfig{}).Process(context.Background(), dto.BulkAllocationRequest{Rows: []dto.BulkAllocationRow{
		ghost,
		noUnit,
		badUnit,
		unitOnRoomOnly,
		noHostel,
		w.aravaliRow(0, "99", 1),
		invalidEmail,
		{HostelID: w.aravali.ID, RoomNumber: "1", BedNumber: 1},
	}}, nil)
	require.NoError(t, err)

	assert.Equal(t, dto.BulkStatusFailed, result.Status)
	assert.Equal(t, map[int]string{
		1: appErrors.ErrStudentNotFound.Code,
		2: appErrors.ErrUnitRequired.Code,
		3: appErrors.ErrUnitNotFound.Code,
		4: appErrors.ErrUnitMismatch.Code,
		5: appErrors.ErrHostelNotFound.Code,
		6: appErrors.ErrRoomNotFound.Code,
		7: appErrors.ErrValidation.Code,
		8: appErrors.ErrValidation.Code,
	}, failedCodes(result))
	assert.Empty(t, result.Succeeded)
	assert.Empty(t, w.store.AuditLogs(), "nothing committed, nothing audited")
	w.assertConsistent(t)
}

func TestBulkMovesExistingAllocations(t *testing.T) {
	w := newWorld(t, 2)
	ctx := context.Background()
	alloc := w.allocations()
	first, err := alloc.Allocate(ctx, dto.AllocateRequest{RoomID: w.r1.ID, StudentProfileID: w.student(0), BedNumber: 1}, nil)
	require.NoError(t, err)
	_, err = alloc.Allocate(ctx, dto.AllocateRequest{RoomID: w.r1.ID, StudentProfileID: w.student(1), BedNumber: 2}, nil)
	require.NoError(t, err)

	result, err := w.bulk(BulkConfig{}).Process(ctx, dto.BulkAllocationRequest{Rows: []dto.BulkAllocationRow{
		w.aravaliRow(0, "10", 1),
		w.aravaliRow(1, "1", 2),
	}}, nil)
	require.NoError(t, err)

	assert.Equal(t, dto.BulkStatusSuccess, result.Status)
	require.Len(t, result.Succeeded, 2)
	assert.Equal(t, dto.BulkRowMoved, result.Succeeded[0].Action)
	assert.Equal(t, first.ID, result.Succeeded[0].AllocationID)
	assert.Equal(t, dto.BulkRowUnchanged, result.Succeeded[1].Action)
	assert.Equal(t, 1, w.room(t, w.r1.ID).Occupancy)
	assert.Equal(t, 1, w.room(t, w.r10.ID).Occupancy)
	assert.Equal(t, first.ID, *w.profile(t, w.student(0)).CurrentRoomAllocationID)
	w.assertConsistent(t)
}

func TestBulkSwapInsideOneRoom(t *testing.T) {
	w := newWorld(t, 2)
	ctx := context.Background()
	alloc := w.allocations()
	_, err := alloc.Allocate(ctx, dto.AllocateRequest{RoomID: w.r1.ID, StudentProfileID: w.student(0), BedNumber: 1}, nil)
	require.NoError(t, err)

	result, err := w.bulk(BulkConfig{}).Process(ctx, dto.BulkAllocationRequest{Rows: []dto.BulkAllocationRow{
		w.aravaliRow(0, "1", 2),
		w.aravaliRow(1, "1", 1),
	}}, nil)
	require.NoError(t, err)

	assert.Equal(t, dto.BulkStatusSuccess, result.Status, "a bed released earlier in the batch can be claimed")
	assert.Equal(t, 2, w.room(t, w.r1.ID).Occupancy)
	w.assertConsistent(t)
}

func TestBulkCreatesProfiles(t *testing.T) {
	w := newWorld(t, 2)
	newRow := func(email, roll string, bed int) dto.BulkAllocationRow {
		return dto.BulkAllocationRow{Email: email, FullName: "New " + roll, RollNumber: roll, Degree: "B.Sc", HostelID: w.aravali.ID, RoomNumber: "10", BedNumber: bed}
	}
	result, err := w.bulk(BulkConfig{}).Process(context.Background(), dto.BulkAllocationRequest{CreateProfiles: true, Rows: []dto.BulkAllocationRow{
		newRow("Fresh@Example.com", "N001", 1),
		newRow("fresh@example.com", "N002", 2),
		newRow(w.students[0].Email, "N003", 2),
		newRow("other@example.com", w.students[1].RollNumber, 2),
		newRow("another@example.com", "N001", 3),
		{Email: "nameless@example.com", RollNumber: "N009", HostelID: w.aravali.ID, RoomNumber: "10", BedNumber: 3},
		newRow("last@example.com", "N010", 3),
	}}, nil)
	require.NoError(t, err)

	assert.Equal(t, dto.BulkStatusPartial, result.Status)
	assert.Equal(t, map[int]string{
		2: appErrors.ErrDuplicateInBatch.Code,
		3: appErrors.ErrEmailTaken.Code,
		4: appErrors.ErrRollNumberTaken.Code,
		5: appErrors.ErrDuplicateInBatch.Code,
		6: appErrors.ErrValidation.Code,
	}, failedCodes(result))
	require.Len(t, result.Succeeded, 2)
	for _, s := range result.Succeeded {
		assert.True(t, s.ProfileCreated)
	}

	var created []models.StudentDirectoryEntry
	require.NoError(t, w.store.View(context.Background(), func(ctx context.Context, r repository.AllocationReader) error {
		var err error
		created, err = r.FindStudentsByEmails(ctx, []string{"fresh@example.com", "last@example.com"})
		return err
	}))
	require.Len(t, created, 2)
	for _, c := range created {
		require.NotNil(t, c.CurrentRoomAllocationID)
		require.NotNil(t, c.Degree)
		assert.Equal(t, "B.Sc", *c.Degree)
	}
	assert.Equal(t, 2, w.room(t, w.r10.ID).Occupancy)
	w.assertConsistent(t)
}

func TestBulkChunksCommitIndependently(t *testing.T) {
	w := newWorld(t, 4)
	result, err := w.bulk(BulkConfig{ChunkSize: 2}).Process(context.Background(), dto.BulkAllocationRequest{Rows: []dto.BulkAllocationRow{
		w.nilgiriRow(0, "102", 1),
		w.nilgiriRow(1, "102", 2),
		w.nilgiriRow(2, "102", 2),
		w.nilgiriRow(3, "102", 3),
	}}, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, result.SucceededCount)
	assert.Equal(t, map[int]string{3: appErrors.ErrBedOccupied.Code}, failedCodes(result))
	assert.Equal(t, 3, w.room(t, w.r102.ID).Occupancy)
	w.assertConsistent(t)
}

func TestBulkRolledBackChunkFailsAcceptedRows(t *testing.T) {
	w := newWorld(t, 2)
	flaky := &flakyStore{TxRunner: w.store, fails: 1}
	svc := NewBulkAllocationService(flaky, nil, nil, nil, nil, BulkConfig{}, nil)
	bad := w.aravaliRow(1, "1", 1)
	bad.Email = ""

	result, err := svc.Process(context.Background(), dto.BulkAllocationRequest{Rows: []dto.BulkAllocationRow{
		w.aravaliRow(0, "1", 1),
		bad,
	}}, nil)
	require.NoError(t, err)

	assert.Equal(t, dto.BulkStatusFailed, result.Status)
	assert.Equal(t, map[int]string{
		1: appErrors.ErrStorageConflict.Code,
		2: appErrors.ErrValidation.Code,
	}, failedCodes(result))
	assert.Equal(t, 0, w.room(t, w.r1.ID).Occupancy)
}

func TestBulkRejectsOversizedBatch(t *testing.T) {
	w := newWorld(t, 3)
	_, err := w.bulk(BulkConfig{MaxRows: 2}).Process(context.Background(), dto.BulkAllocationRequest{Rows: []dto.BulkAllocationRow{
		w.aravaliRow(0, "1", 1), w.aravaliRow(1, "1", 2), w.aravaliRow(2, "10", 1),
	}}, nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = w.bulk(BulkConfig{}).Process(context.Background(), dto.BulkAllocationRequest{}, nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestImportRosterCSV(t *testing.T) {
	w := newWorld(t, 2)
	csv := fmt.Sprintf("Email,Hostel ID,Unit,Room Number,Bed\n%s,%s,A,101,1\n\n%s,%s,A,101,7\n",
		w.students[0].Email, w.nilgiri.ID, w.students[1].Email, w.nilgiri.ID)

	result, err := w.bulk(BulkConfig{}).ImportRoster(context.Background(), strings.NewReader(csv), "roster.csv", false, warden)
	require.NoError(t, err)

	assert.Equal(t, dto.BulkStatusPartial, result.Status)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, map[int]string{2: appErrors.ErrInvalidBed.Code}, failedCodes(result))
	assert.Equal(t, 1, w.room(t, w.r101.ID).Occupancy)
}

func TestImportRosterRejectsMalformedFiles(t *testing.T) {
	w := newWorld(t, 0)
	svc := w.bulk(BulkConfig{})
	ctx := context.Background()

	_, err := svc.ImportRoster(ctx, strings.NewReader("email\n"), "roster.txt", false, nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = svc.ImportRoster(ctx, strings.NewReader("email,hostelId,roomNumber\na@example.com,h,1\n"), "roster.csv", false, nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = svc.ImportRoster(ctx, strings.NewReader("email,hostelId,roomNumber,bedNumber\n"), "roster.csv", false, nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
