package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/internal/repository"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
)

// BulkConfig tunes the bulk processor.
type BulkConfig struct {
	MaxRows            int
	ChunkSize          int
	ResolveConcurrency int
	BcryptCost         int
}

// BulkAllocationService applies roster batches with partial-success semantics. Rows are checked
// structurally, resolved against the store in bulk, planned against a running per-room delta and
// committed chunk by chunk, each chunk all-or-nothing for the rows it accepted.
type BulkAllocationService struct {
	store     repository.TxRunner
	audit     auditWriter
	notifier  occupancyNotifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       BulkConfig
}

// NewBulkAllocationService constructs the processor.
func NewBulkAllocationService(store repository.TxRunner, audit auditWriter, notifier occupancyNotifier, metrics *MetricsService, validate *validator.Validate, cfg BulkConfig, logger *zap.Logger) *BulkAllocationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 2000
	}
	if cfg.ResolveConcurrency <= 0 {
		cfg.ResolveConcurrency = 4
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &BulkAllocationService{
		store:     store,
		audit:     audit,
		notifier:  notifier,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

type bulkRow struct {
	index int
	input dto.BulkAllocationRow

	hostel    *models.Hostel
	unitID    *string
	roomID    string
	studentID string
	email     string

	user    *models.User
	profile *models.StudentProfile
}

type bulkReport struct {
	succeeded []dto.BulkRowResult
	failed    []dto.BulkRowError
}

func (r *bulkReport) fail(row *bulkRow, err error) {
	typed := appErrors.FromError(err)
	r.failed = append(r.failed, dto.BulkRowError{
		Row:     row.index,
		Input:   redact(row.input),
		Code:    typed.Code,
		Message: typed.Message,
	})
}

func redact(in dto.BulkAllocationRow) dto.BulkAllocationRow {
	in.Password = ""
	return in
}

// Process runs one batch. It only returns an error for request-level problems; row failures are
// part of the report.
func (s *BulkAllocationService) Process(ctx context.Context, req dto.BulkAllocationRequest, actor *models.JWTClaims) (*dto.BulkAllocationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk allocation payload")
	}
	if len(req.Rows) > s.cfg.MaxRows {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("batch exceeds %d rows", s.cfg.MaxRows))
	}

	report := &bulkReport{}
	rows := s.validateRows(req, report)
	rows = s.resolve(ctx, req.CreateProfiles, rows, report)
	if req.CreateProfiles {
		rows = s.prepareProfiles(ctx, rows, report)
	}

	for _, chunk := range chunkRows(rows, s.cfg.ChunkSize) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.commitChunk(ctx, chunk, actor, report)
	}

	result := buildBulkResult(len(req.Rows), report)
	s.metrics.RecordBulkRows("succeeded", result.SucceededCount)
	s.metrics.RecordBulkRows("failed", result.FailedCount)
	s.logger.Info("bulk allocation processed",
		zap.Int("total", result.Total),
		zap.Int("succeeded", result.SucceededCount),
		zap.Int("failed", result.FailedCount),
		zap.String("status", string(result.Status)),
	)

	if result.SucceededCount > 0 {
		recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionBulkAllocation, "room_allocation", "", nil, map[string]interface{}{
			"total":          result.Total,
			"succeeded":      result.SucceededCount,
			"failed":         result.FailedCount,
			"createProfiles": req.CreateProfiles,
		})
		if s.notifier != nil {
			s.notifier.OccupancyChanged(ctx)
		}
	}
	return result, nil
}

// validateRows applies the structural checks and rejects in-batch duplicates. The first
// occurrence of an email or roll number wins.
func (s *BulkAllocationService) validateRows(req dto.BulkAllocationRequest, report *bulkReport) []*bulkRow {
	seenEmail := make(map[string]int)
	seenRoll := make(map[string]int)
	out := make([]*bulkRow, 0, len(req.Rows))

	for i, input := range req.Rows {
		input.Email = strings.TrimSpace(input.Email)
		input.FullName = strings.TrimSpace(input.FullName)
		input.RollNumber = strings.TrimSpace(input.RollNumber)
		input.Degree = strings.TrimSpace(input.Degree)
		input.HostelID = strings.TrimSpace(input.HostelID)
		input.UnitNumber = strings.TrimSpace(input.UnitNumber)
		input.RoomNumber = strings.TrimSpace(input.RoomNumber)
		row := &bulkRow{index: i + 1, input: input, email: strings.ToLower(input.Email)}

		if msg := s.structuralProblem(input, req.CreateProfiles); msg != "" {
			report.fail(row, appErrors.Clone(appErrors.ErrValidation, msg))
			continue
		}
		if first, dup := seenEmail[row.email]; dup {
			report.fail(row, appErrors.Clone(appErrors.ErrDuplicateInBatch, fmt.Sprintf("email %s already used in row %d", input.Email, first)))
			continue
		}
		if input.RollNumber != "" {
			if first, dup := seenRoll[input.RollNumber]; dup {
				report.fail(row, appErrors.Clone(appErrors.ErrDuplicateInBatch, fmt.Sprintf("roll number %s already used in row %d", input.RollNumber, first)))
				continue
			}
			seenRoll[input.RollNumber] = row.index
		}
		seenEmail[row.email] = row.index
		out = append(out, row)
	}
	return out
}

func (s *BulkAllocationService) structuralProblem(input dto.BulkAllocationRow, createProfiles bool) string {
	if input.Email == "" {
		return "email is required"
	}
	if err := s.validator.Var(input.Email, "email"); err != nil {
		return "email is invalid"
	}
	if input.HostelID == "" {
		return "hostelId is required"
	}
	if input.RoomNumber == "" {
		return "roomNumber is required"
	}
	if createProfiles {
		if input.FullName == "" {
			return "fullName is required"
		}
		if input.RollNumber == "" {
			return "rollNumber is required"
		}
	}
	return ""
}

type bulkLookup struct {
	hostels  map[string]*models.Hostel
	units    map[string]models.Unit
	rooms    map[string]models.Room
	students map[string]models.StudentDirectoryEntry
	rolls    map[string]models.StudentDirectoryEntry
	users    map[string]models.User
}

func unitKey(hostelID, unitNumber string) string {
	return hostelID + "\x00" + unitNumber
}

func roomKey(hostelID, unitID, roomNumber string) string {
	return hostelID + "\x00" + unitID + "\x00" + roomNumber
}

// resolve looks up every referenced entity once per batch, in parallel, each lookup on its own
// read snapshot. The write transaction re-reads everything that matters for consistency.
func (s *BulkAllocationService) resolve(ctx context.Context, createProfiles bool, rows []*bulkRow, report *bulkReport) []*bulkRow {
	if len(rows) == 0 {
		return rows
	}
	hostelIDs := distinct(rows, func(r *bulkRow) string { return r.input.HostelID })
	emails := distinct(rows, func(r *bulkRow) string { return r.email })
	rolls := distinct(rows, func(r *bulkRow) string { return r.input.RollNumber })

	var (
		hostels  []models.Hostel
		units    []models.Unit
		rooms    []models.Room
		students []models.StudentDirectoryEntry
		byRoll   []models.StudentDirectoryEntry
		users    []models.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ResolveConcurrency)
	lookup := func(fn func(ctx context.Context, r repository.AllocationReader) error) {
		g.Go(func() error { return s.store.View(gctx, fn) })
	}
	lookup(func(ctx context.Context, r repository.AllocationReader) (err error) {
		hostels, err = r.FindHostels(ctx, hostelIDs)
		return err
	})
	lookup(func(ctx context.Context, r repository.AllocationReader) (err error) {
		units, err = r.FindUnitsByHostels(ctx, hostelIDs)
		return err
	})
	lookup(func(ctx context.Context, r repository.AllocationReader) (err error) {
		rooms, err = r.FindRoomsByHostels(ctx, hostelIDs)
		return err
	})
	lookup(func(ctx context.Context, r repository.AllocationReader) (err error) {
		students, err = r.FindStudentsByEmails(ctx, emails)
		return err
	})
	if createProfiles {
		lookup(func(ctx context.Context, r repository.AllocationReader) (err error) {
			byRoll, err = r.FindStudentsByRollNumbers(ctx, rolls)
			return err
		})
		lookup(func(ctx context.Context, r repository.AllocationReader) (err error) {
			users, err = r.FindUsersByEmails(ctx, emails)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("bulk allocation lookup failed", zap.Error(err))
		mapped := mapStorageError(err, "resolve bulk allocation references")
		for _, row := range rows {
			report.fail(row, mapped)
		}
		return nil
	}

	lk := bulkLookup{
		hostels:  make(map[string]*models.Hostel, len(hostels)),
		units:    make(map[string]models.Unit, len(units)),
		rooms:    make(map[string]models.Room, len(rooms)),
		students: make(map[string]models.StudentDirectoryEntry, len(students)),
		rolls:    make(map[string]models.StudentDirectoryEntry, len(byRoll)),
		users:    make(map[string]models.User, len(users)),
	}
	for i := range hostels {
		lk.hostels[hostels[i].ID] = &hostels[i]
	}
	for _, u := range units {
		lk.units[unitKey(u.HostelID, u.UnitNumber)] = u
	}
	for _, r := range rooms {
		lk.rooms[roomKey(r.HostelID, r.UnitValue(), r.RoomNumber)] = r
	}
	for _, st := range students {
		lk.students[strings.ToLower(st.Email)] = st
	}
	for _, st := range byRoll {
		lk.rolls[st.RollNumber] = st
	}
	for _, u := range users {
		lk.users[strings.ToLower(u.Email)] = u
	}

	out := rows[:0]
	for _, row := range rows {
		if err := lk.bind(row, createProfiles); err != nil {
			report.fail(row, err)
			continue
		}
		out = append(out, row)
	}
	return out
}

func (lk bulkLookup) bind(row *bulkRow, createProfiles bool) error {
	hostel, ok := lk.hostels[row.input.HostelID]
	if !ok {
		return appErrors.Clone(appErrors.ErrHostelNotFound, fmt.Sprintf("hostel %s not found", row.input.HostelID))
	}
	row.hostel = hostel

	unitID := ""
	switch hostel.Type {
	case models.HostelTypeUnitBased:
		if row.input.UnitNumber == "" {
			return appErrors.ErrUnitRequired
		}
		unit, ok := lk.units[unitKey(hostel.ID, row.input.UnitNumber)]
		if !ok {
			return appErrors.Clone(appErrors.ErrUnitNotFound, fmt.Sprintf("unit %s not found in %s", row.input.UnitNumber, hostel.Name))
		}
		unitID = unit.ID
		row.unitID = &unit.ID
	default:
		if row.input.UnitNumber != "" {
			return appErrors.Clone(appErrors.ErrUnitMismatch, "room-only hostels do not use units")
		}
	}

	room, ok := lk.rooms[roomKey(hostel.ID, unitID, row.input.RoomNumber)]
	if !ok {
		return appErrors.Clone(appErrors.ErrRoomNotFound, fmt.Sprintf("room %s not found", row.input.RoomNumber))
	}
	row.roomID = room.ID

	if createProfiles {
		if _, taken := lk.users[row.email]; taken {
			return appErrors.Clone(appErrors.ErrEmailTaken, fmt.Sprintf("email %s already registered", row.input.Email))
		}
		if _, taken := lk.students[row.email]; taken {
			return appErrors.Clone(appErrors.ErrEmailTaken, fmt.Sprintf("email %s already registered", row.input.Email))
		}
		if _, taken := lk.rolls[row.input.RollNumber]; taken {
			return appErrors.Clone(appErrors.ErrRollNumberTaken, fmt.Sprintf("roll number %s already registered", row.input.RollNumber))
		}
		return nil
	}

	student, ok := lk.students[row.email]
	if !ok {
		return appErrors.Clone(appErrors.ErrStudentNotFound, fmt.Sprintf("no student profile for %s", row.input.Email))
	}
	row.studentID = student.StudentProfileID
	return nil
}

// prepareProfiles hashes credentials outside the write transaction. The password defaults to the
// roll number.
func (s *BulkAllocationService) prepareProfiles(ctx context.Context, rows []*bulkRow, report *bulkReport) []*bulkRow {
	hashes := make([][]byte, len(rows))
	errs := make([]error, len(rows))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ResolveConcurrency)
	for i, row := range rows {
		i, row := i, row // per-iteration copies; module targets go1.21 loop semantics
		g.Go(func() error {
			password := row.input.Password
			if password == "" {
				password = row.input.RollNumber
			}
			hashes[i], errs[i] = bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
			return nil
		})
	}
	_ = g.Wait()

	out := rows[:0]
	for i, row := range rows {
		if errs[i] != nil {
			report.fail(row, appErrors.Wrap(errs[i], appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "password cannot be hashed"))
			continue
		}
		row.user = &models.User{
			ID:           uuid.NewString(),
			Email:        row.email,
			PasswordHash: string(hashes[i]),
			FullName:     row.input.FullName,
			Role:         models.RoleStudent,
			Active:       true,
		}
		row.profile = &models.StudentProfile{
			ID:         uuid.NewString(),
			UserID:     row.user.ID,
			RollNumber: row.input.RollNumber,
		}
		if row.input.Degree != "" {
			degree := row.input.Degree
			row.profile.Degree = &degree
		}
		row.studentID = row.profile.ID
		out = append(out, row)
	}
	return out
}

type plannedRow struct {
	row     *bulkRow
	current *models.RoomAllocation
	allocID string
	action  dto.BulkRowAction
}

// commitChunk plans the chunk against freshly locked rooms and applies the accepted rows in one
// transaction. A failed transaction fails every accepted row of the chunk with the same reason.
func (s *BulkAllocationService) commitChunk(ctx context.Context, chunk []*bulkRow, actor *models.JWTClaims, report *bulkReport) {
	var planned []plannedRow
	var rejected []dto.BulkRowError

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.AllocationTx) error {
		planned, rejected = nil, nil
		chunkReport := &bulkReport{}

		existingIDs := make([]string, 0, len(chunk))
		for _, row := range chunk {
			if row.profile == nil {
				existingIDs = append(existingIDs, row.studentID)
			}
		}
		currentAllocs, err := tx.ListActiveAllocationsByStudents(ctx, existingIDs)
		if err != nil {
			return err
		}
		current := make(map[string]models.RoomAllocation, len(currentAllocs))
		roomIDs := make([]string, 0, len(chunk)+len(currentAllocs))
		for _, a := range currentAllocs {
			current[a.StudentProfileID] = a
			roomIDs = append(roomIDs, a.RoomID)
		}
		for _, row := range chunk {
			roomIDs = append(roomIDs, row.roomID)
		}

		locked, err := tx.LockRooms(ctx, roomIDs)
		if err != nil {
			return err
		}
		rooms := make(map[string]models.Room, len(locked))
		lockedIDs := make([]string, 0, len(locked))
		for _, r := range locked {
			rooms[r.ID] = r
			lockedIDs = append(lockedIDs, r.ID)
		}
		occupied, err := tx.ListActiveAllocationsByRooms(ctx, lockedIDs)
		if err != nil {
			return err
		}
		beds := make(map[string]map[int]string, len(locked))
		for _, a := range occupied {
			if beds[a.RoomID] == nil {
				beds[a.RoomID] = map[int]string{}
			}
			beds[a.RoomID][a.BedNumber] = a.ID
		}

		delta := make(map[string]int, len(locked))
		for _, row := range chunk {
			room, ok := rooms[row.roomID]
			if !ok {
				chunkReport.fail(row, appErrors.Clone(appErrors.ErrRoomNotFound, fmt.Sprintf("room %s not found", row.input.RoomNumber)))
				continue
			}
			var cur *models.RoomAllocation
			if a, ok := current[row.studentID]; ok {
				cur = &a
			}
			sameRoom := cur != nil && cur.RoomID == room.ID

			projected := room
			projected.Occupancy = room.Occupancy + delta[room.ID]
			if err := checkAddressing(row.hostel, &projected, row.unitID); err != nil {
				chunkReport.fail(row, err)
				continue
			}
			if err := checkPlacement(&projected, row.input.BedNumber, sameRoom); err != nil {
				chunkReport.fail(row, err)
				continue
			}
			holder, taken := beds[room.ID][row.input.BedNumber]
			if taken && (cur == nil || holder != cur.ID) {
				chunkReport.fail(row, appErrors.Clone(appErrors.ErrBedOccupied, fmt.Sprintf("bed %d of room %s is already occupied", row.input.BedNumber, room.RoomNumber)))
				continue
			}

			p := plannedRow{row: row, current: cur}
			switch {
			case cur == nil:
				p.allocID = uuid.NewString()
				p.action = dto.BulkRowCreated
			case sameRoom && cur.BedNumber == row.input.BedNumber:
				p.allocID = cur.ID
				p.action = dto.BulkRowUnchanged
				planned = append(planned, p)
				continue
			default:
				p.allocID = cur.ID
				p.action = dto.BulkRowMoved
				delete(beds[cur.RoomID], cur.BedNumber)
				delta[cur.RoomID]--
			}
			if beds[room.ID] == nil {
				beds[room.ID] = map[int]string{}
			}
			beds[room.ID][row.input.BedNumber] = p.allocID
			delta[room.ID]++
			planned = append(planned, p)
		}
		rejected = chunkReport.failed

		for _, p := range planned {
			if err := s.applyRow(ctx, tx, p, actor); err != nil {
				return err
			}
		}
		return applyDeltas(ctx, tx, delta)
	})

	report.failed = append(report.failed, rejected...)
	if err != nil {
		mapped := mapStorageError(err, "commit bulk allocation")
		s.logger.Warn("bulk allocation chunk rolled back", zap.Int("rows", len(chunk)-len(rejected)), zap.Error(err))
		decided := make(map[int]struct{}, len(rejected))
		for _, r := range rejected {
			decided[r.Row] = struct{}{}
		}
		for _, row := range chunk {
			if _, ok := decided[row.index]; !ok {
				report.fail(row, mapped)
			}
		}
		return
	}
	for _, p := range planned {
		report.succeeded = append(report.succeeded, dto.BulkRowResult{
			Row:              p.row.index,
			Email:            p.row.input.Email,
			StudentProfileID: p.row.studentID,
			AllocationID:     p.allocID,
			RoomID:           p.row.roomID,
			BedNumber:        p.row.input.BedNumber,
			Action:           p.action,
			ProfileCreated:   p.row.profile != nil,
		})
	}
}

func (s *BulkAllocationService) applyRow(ctx context.Context, tx repository.AllocationTx, p plannedRow, actor *models.JWTClaims) error {
	row := p.row
	if row.profile != nil {
		user := *row.user
		if err := tx.CreateUser(ctx, &user); err != nil {
			return err
		}
		profile := *row.profile
		if err := tx.CreateStudentProfile(ctx, &profile); err != nil {
			return err
		}
	}
	switch p.action {
	case dto.BulkRowCreated:
		allocation := &models.RoomAllocation{
			ID:               p.allocID,
			HostelID:         row.hostel.ID,
			RoomID:           row.roomID,
			UnitID:           row.unitID,
			StudentProfileID: row.studentID,
			BedNumber:        row.input.BedNumber,
			Status:           models.AllocationStatusActive,
			CreatedBy:        userIDPtr(actor),
			LastUpdatedBy:    userIDPtr(actor),
		}
		if err := tx.InsertAllocation(ctx, allocation); err != nil {
			return err
		}
		return tx.SetCurrentAllocation(ctx, row.studentID, allocation.ID)
	case dto.BulkRowMoved:
		if err := tx.MoveAllocation(ctx, repository.MoveAllocation{
			AllocationID: p.allocID,
			RoomID:       row.roomID,
			UnitID:       row.unitID,
			BedNumber:    row.input.BedNumber,
			ActorID:      userIDPtr(actor),
		}); err != nil {
			return err
		}
		return tx.SetCurrentAllocation(ctx, row.studentID, p.allocID)
	}
	return nil
}

// applyDeltas writes the aggregated occupancy changes, releases before claims so no intermediate
// statement exceeds a capacity.
func applyDeltas(ctx context.Context, tx repository.AllocationTx, delta map[string]int) error {
	ids := make([]string, 0, len(delta))
	for id, d := range delta {
		if d != 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		if delta[ids[i]] != delta[ids[j]] {
			return delta[ids[i]] < delta[ids[j]]
		}
		return ids[i] < ids[j]
	})
	for _, id := range ids {
		if err := tx.AdjustOccupancy(ctx, id, delta[id]); err != nil {
			return err
		}
	}
	return nil
}

func chunkRows(rows []*bulkRow, size int) [][]*bulkRow {
	if len(rows) == 0 {
		return nil
	}
	if size <= 0 || size >= len(rows) {
		return [][]*bulkRow{rows}
	}
	chunks := make([][]*bulkRow, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[start:end])
	}
	return chunks
}

func distinct(rows []*bulkRow, key func(*bulkRow) string) []string {
	seen := make(map[string]struct{}, len(rows))
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		k := key(row)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func buildBulkResult(total int, report *bulkReport) *dto.BulkAllocationResult {
	sort.Slice(report.succeeded, func(i, j int) bool { return report.succeeded[i].Row < report.succeeded[j].Row })
	sort.Slice(report.failed, func(i, j int) bool { return report.failed[i].Row < report.failed[j].Row })
	result := &dto.BulkAllocationResult{
		Total:          total,
		SucceededCount: len(report.succeeded),
		FailedCount:    len(report.failed),
		Succeeded:      report.succeeded,
		Failed:         report.failed,
	}
	if result.Succeeded == nil {
		result.Succeeded = []dto.BulkRowResult{}
	}
	if result.Failed == nil {
		result.Failed = []dto.BulkRowError{}
	}
	switch {
	case result.FailedCount == 0:
		result.Status = dto.BulkStatusSuccess
	case result.SucceededCount == 0:
		result.Status = dto.BulkStatusFailed
	default:
		result.Status = dto.BulkStatusPartial
	}
	return result
}
