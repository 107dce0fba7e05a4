package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/internal/repository"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
	"github.com/noah-isme/hostel-allocation-api/pkg/jobs"
)

const (
	occupancyCachePattern = "occupancy:*"
	summaryCacheKey       = "occupancy:summary"
	sheetCachePrefix      = "occupancy:sheet:"

	// JobTypeWarmSummary rebuilds the cached summary after a write.
	JobTypeWarmSummary = "occupancy.warm_summary"
)

type jobEnqueuer interface {
	Enqueue(job jobs.Job) (bool, error)
}

// OccupancyConfig tunes projection caching.
type OccupancyConfig struct {
	SummaryTTL time.Duration
	SheetTTL   time.Duration
}

// OccupancyService builds read-only projections of rooms and allocations. It implements the
// change notification used by every writer to drop stale cached projections.
type OccupancyService struct {
	store   repository.TxRunner
	cache   *CacheService
	cfg     OccupancyConfig
	logger  *zap.Logger
	warmers jobEnqueuer
	now     func() time.Time
}

// NewOccupancyService constructs the projection service. cache may be nil.
func NewOccupancyService(store repository.TxRunner, cache *CacheService, cfg OccupancyConfig, logger *zap.Logger) *OccupancyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SummaryTTL <= 0 {
		cfg.SummaryTTL = 5 * time.Minute
	}
	if cfg.SheetTTL <= 0 {
		cfg.SheetTTL = cfg.SummaryTTL
	}
	return &OccupancyService{store: store, cache: cache, cfg: cfg, logger: logger, now: time.Now}
}

// UseWarmQueue registers the queue that receives summary warm jobs after invalidation.
func (s *OccupancyService) UseWarmQueue(q jobEnqueuer) {
	s.warmers = q
}

// ProjectSheet returns one row per bed of an active room and a single bed 0 row per inactive
// room, ordered by unit then room number.
func (s *OccupancyService) ProjectSheet(ctx context.Context, hostelID string) ([]models.SheetRow, error) {
	rows, _, err := cachedLoad(ctx, s.cache, sheetCachePrefix+hostelID, s.cfg.SheetTTL, func(ctx context.Context) ([]models.SheetRow, error) {
		return s.buildSheet(ctx, hostelID)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrHostelNotFound, "hostel not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to project occupancy sheet")
	}
	return rows, nil
}

func (s *OccupancyService) buildSheet(ctx context.Context, hostelID string) ([]models.SheetRow, error) {
	var (
		hostel    *models.Hostel
		units     []models.Unit
		rooms     []models.Room
		active    []models.RoomAllocation
		directory []models.StudentDirectoryEntry
	)
	err := s.store.View(ctx, func(ctx context.Context, r repository.AllocationReader) error {
		var err error
		if hostel, err = r.GetHostel(ctx, hostelID); err != nil {
			return err
		}
		if units, err = r.ListUnitsByHostel(ctx, hostelID); err != nil {
			return err
		}
		if rooms, err = r.ListRoomsByHostel(ctx, hostelID); err != nil {
			return err
		}
		roomIDs := make([]string, len(rooms))
		for i, room := range rooms {
			roomIDs[i] = room.ID
		}
		if active, err = r.ListActiveAllocationsByRooms(ctx, roomIDs); err != nil {
			return err
		}
		studentIDs := make([]string, len(active))
		for i, a := range active {
			studentIDs[i] = a.StudentProfileID
		}
		directory, err = r.ListStudentDirectory(ctx, studentIDs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return assembleSheet(hostel, units, rooms, active, directory), nil
}

func assembleSheet(hostel *models.Hostel, units []models.Unit, rooms []models.Room, active []models.RoomAllocation, directory []models.StudentDirectoryEntry) []models.SheetRow {
	unitByID := make(map[string]models.Unit, len(units))
	for _, u := range units {
		unitByID[u.ID] = u
	}
	students := make(map[string]models.StudentDirectoryEntry, len(directory))
	for _, d := range directory {
		students[d.StudentProfileID] = d
	}
	type bedKey struct {
		room string
		bed  int
	}
	beds := make(map[bedKey]models.RoomAllocation, len(active))
	for _, a := range active {
		beds[bedKey{a.RoomID, a.BedNumber}] = a
	}

	sorted := append([]models.Room(nil), rooms...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ui, uj := unitByID[sorted[i].UnitValue()].UnitNumber, unitByID[sorted[j].UnitValue()].UnitNumber
		if ui != uj {
			return naturalLess(ui, uj)
		}
		return naturalLess(sorted[i].RoomNumber, sorted[j].RoomNumber)
	})

	rows := make([]models.SheetRow, 0, len(sorted))
	for _, room := range sorted {
		base := models.SheetRow{
			HostelID:   hostel.ID,
			HostelName: hostel.Name,
			RoomID:     room.ID,
			RoomNumber: room.RoomNumber,
			RoomStatus: room.Status,
			Capacity:   room.Capacity,
			Occupancy:  room.Occupancy,
		}
		if unit, ok := unitByID[room.UnitValue()]; ok {
			floor := unit.Floor
			base.UnitNumber = unit.UnitNumber
			base.Floor = &floor
		}
		if !room.Active() {
			rows = append(rows, base)
			continue
		}
		for bed := 1; bed <= room.Capacity; bed++ {
			row := base
			row.BedNumber = bed
			if a, ok := beds[bedKey{room.ID, bed}]; ok {
				row.AllocationID = a.ID
				if st, ok := students[a.StudentProfileID]; ok {
					row.StudentName = st.FullName
					row.RollNumber = st.RollNumber
					row.Email = st.Email
					row.Degree = degreeOf(st.Degree)
				}
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// ProjectAllocationSummary cross-tabulates active allocations by degree and hostel name.
func (s *OccupancyService) ProjectAllocationSummary(ctx context.Context) (*models.AllocationSummary, error) {
	summary, _, err := cachedLoad(ctx, s.cache, summaryCacheKey, s.cfg.SummaryTTL, s.buildSummary)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to project allocation summary")
	}
	return summary, nil
}

func (s *OccupancyService) buildSummary(ctx context.Context) (*models.AllocationSummary, error) {
	var (
		hostels []models.Hostel
		entries []models.SummaryEntry
	)
	err := s.store.View(ctx, func(ctx context.Context, r repository.AllocationReader) error {
		var err error
		if hostels, err = r.ListHostels(ctx, false); err != nil {
			return err
		}
		entries, err = r.ListSummaryEntries(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	summary := summarize(hostels, entries)
	summary.GeneratedAt = s.now().UTC()
	return summary, nil
}

// summarize accumulates counts keyed by (degree, hostel name) in one pass. Columns are the listed
// hostels plus any hostel that holds allocations; rows sort by degree with Unknown last.
func summarize(hostels []models.Hostel, entries []models.SummaryEntry) *models.AllocationSummary {
	columns := make(map[string]struct{}, len(hostels))
	for _, h := range hostels {
		columns[h.Name] = struct{}{}
	}
	counts := make(map[string]map[string]int)
	columnTotals := make(map[string]int)
	grand := 0
	for _, e := range entries {
		degree := degreeOf(e.Degree)
		columns[e.HostelName] = struct{}{}
		if counts[degree] == nil {
			counts[degree] = make(map[string]int)
		}
		counts[degree][e.HostelName]++
		columnTotals[e.HostelName]++
		grand++
	}

	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := columnTotals[name]; !ok {
			columnTotals[name] = 0
		}
	}

	degrees := make([]string, 0, len(counts))
	for degree := range counts {
		degrees = append(degrees, degree)
	}
	sort.Slice(degrees, func(i, j int) bool {
		if degrees[i] == models.UnknownDegree || degrees[j] == models.UnknownDegree {
			return degrees[j] == models.UnknownDegree && degrees[i] != models.UnknownDegree
		}
		return degrees[i] < degrees[j]
	})

	rows := make([]models.SummaryRow, 0, len(degrees))
	for _, degree := range degrees {
		row := models.SummaryRow{Degree: degree, Counts: make(map[string]int, len(names))}
		for _, name := range names {
			n := counts[degree][name]
			row.Counts[name] = n
			row.Total += n
		}
		rows = append(rows, row)
	}

	return &models.AllocationSummary{
		Hostels:      names,
		Rows:         rows,
		ColumnTotals: columnTotals,
		GrandTotal:   grand,
	}
}

// OccupancyChanged drops every cached projection and schedules a summary rebuild. It runs after
// commit and detaches from the caller's cancellation.
func (s *OccupancyService) OccupancyChanged(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.cache.Invalidate(ctx, occupancyCachePattern); err != nil {
		s.logger.Warn("failed to invalidate occupancy cache", zap.Error(err))
	}
	if s.warmers == nil || !s.cache.Enabled() {
		return
	}
	if _, err := s.warmers.Enqueue(jobs.Job{ID: uuid.NewString(), Type: JobTypeWarmSummary, Key: summaryCacheKey}); err != nil {
		s.logger.Warn("failed to enqueue summary warm job", zap.Error(err))
	}
}

// WarmSummary rebuilds and caches the summary. It is the handler of warm jobs.
func (s *OccupancyService) WarmSummary(ctx context.Context, job jobs.Job) error {
	if job.Type != JobTypeWarmSummary {
		return nil
	}
	summary, err := s.buildSummary(ctx)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, summaryCacheKey, summary, s.cfg.SummaryTTL)
}

func degreeOf(degree *string) string {
	if degree == nil || *degree == "" {
		return models.UnknownDegree
	}
	return *degree
}

// naturalLess orders strings with embedded numbers numerically, so "2" sorts before "10".
func naturalLess(a, b string) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ca, cb := a[i], b[j]
		if isDigit(ca) && isDigit(cb) {
			si := i
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			sj := j
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			na, nb := trimZeros(a[si:i]), trimZeros(b[sj:j])
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			continue
		}
		if ca != cb {
			return ca < cb
		}
		i++
		j++
	}
	return len(a)-i < len(b)-j
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func trimZeros(s string) string {
	for len(s) > 1 && s[0] == '0' {
		s = s[1:]
	}
	return s
}
