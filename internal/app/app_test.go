package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/pkg/config"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		APIPrefix: "/api/v1",
		JWT:       config.JWTConfig{Secret: "test-secret", Issuer: "test", Expiration: time.Hour},
		Store:     config.StoreConfig{Driver: config.StoreDriverMemory},
		Allocation: config.AllocationConfig{
			MaxTxRetries:       1,
			BulkMaxRows:        10,
			ResolveConcurrency: 2,
			BcryptCost:         4,
		},
		Exports: config.ExportsConfig{
			StorageDriver:   config.ExportStorageLocal,
			StorageDir:      t.TempDir(),
			SignedURLSecret: "exports",
			SignedURLTTL:    time.Minute,
		},
	}
}

func TestNewWiresMemoryStore(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, memoryConfig(t), nil, Options{Cache: true, Exports: true, Warmup: true})
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.DB)
	assert.Nil(t, a.WarmQueue, "no warm queue without a cache")
	require.NoError(t, a.Store.Ping(ctx))

	hostel, err := a.Catalog.CreateHostel(ctx, dto.CreateHostelRequest{
		Name: "Aravali", Type: models.HostelTypeRoomOnly, Gender: "male",
		Rooms: []dto.RoomSpec{{RoomNumber: "1", Capacity: 2}},
	}, nil)
	require.NoError(t, err)

	result, err := a.Exports.Create(ctx, dto.ExportRequest{Type: dto.ExportTypeSheet, HostelID: hostel.ID, Format: "csv"})
	require.NoError(t, err)
	assert.Contains(t, result.DownloadURL, "/api/v1/occupancy/exports/download?token=")

	report, err := a.Consistency.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, report.Healthy())

	token, _, err := a.Auth.GenerateToken(models.User{ID: "ops", Role: models.RoleAdmin})
	require.NoError(t, err)
	claims, err := a.Auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestNewRejectsUnknownDrivers(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Store.Driver = "mongo"
	_, err := New(context.Background(), cfg, nil, Options{})
	assert.ErrorContains(t, err, "unknown store driver")

	cfg = memoryConfig(t)
	cfg.Exports.StorageDriver = "ftp"
	_, err = New(context.Background(), cfg, nil, Options{Exports: true})
	assert.ErrorContains(t, err, "unknown export storage driver")
}
