package dto

// BulkAllocationRow is one roster line. HostelID/UnitNumber/RoomNumber/BedNumber address the
// target bed; the identity fields resolve or provision the student.
type BulkAllocationRow struct {
	Email      string `json:"email"`
	FullName   string `json:"fullName,omitempty"`
	RollNumber string `json:"rollNumber,omitempty"`
	Degree     string `json:"degree,omitempty"`
	Password   string `json:"password,omitempty"`
	HostelID   string `json:"hostelId"`
	UnitNumber string `json:"unitNumber,omitempty"`
	RoomNumber string `json:"roomNumber"`
	BedNumber  int    `json:"bedNumber"`
}

// BulkAllocationRequest carries a roster batch.
type BulkAllocationRequest struct {
	CreateProfiles bool                `json:"createProfiles"`
	Rows           []BulkAllocationRow `json:"rows" validate:"required,min=1"`
}

// BulkRowAction describes what happened to a committed row.
type BulkRowAction string

const (
	BulkRowCreated   BulkRowAction = "CREATED"
	BulkRowMoved     BulkRowAction = "MOVED"
	BulkRowUnchanged BulkRowAction = "UNCHANGED"
)

// BulkRowResult reports a committed row.
type BulkRowResult struct {
	Row              int           `json:"row"`
	Email            string        `json:"email"`
	StudentProfileID string        `json:"studentProfileId"`
	AllocationID     string        `json:"allocationId"`
	RoomID           string        `json:"roomId"`
	BedNumber        int           `json:"bedNumber"`
	Action           BulkRowAction `json:"action"`
	ProfileCreated   bool          `json:"profileCreated,omitempty"`
}

// BulkRowError reports a rejected row together with its original input.
type BulkRowError struct {
	Row     int               `json:"row"`
	Input   BulkAllocationRow `json:"input"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
}

// BulkStatus is the aggregate outcome of a batch.
type BulkStatus string

const (
	BulkStatusSuccess BulkStatus = "SUCCESS"
	BulkStatusPartial BulkStatus = "PARTIAL"
	BulkStatusFailed  BulkStatus = "FAILED"
)

// BulkAllocationResult is the partial-success report of a batch.
type BulkAllocationResult struct {
	Status         BulkStatus      `json:"status"`
	Total          int             `json:"total"`
	SucceededCount int             `json:"succeededCount"`
	FailedCount    int             `json:"failedCount"`
	Succeeded      []BulkRowResult `json:"succeeded"`
	Failed         []BulkRowError  `json:"failed"`
}
