package main

import (
	"context"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/hostel-allocation-api/internal/app"
	"github.com/noah-isme/hostel-allocation-api/internal/handler"
	"github.com/noah-isme/hostel-allocation-api/internal/middleware"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/pkg/config"
	"github.com/noah-isme/hostel-allocation-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/hostel-allocation-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/hostel-allocation-api/pkg/middleware/requestid"
)

func newRouter(a *app.App) *gin.Engine {
	cfg := a.Config

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.Metrics))

	checks := map[string]handler.ReadinessCheck{"store": a.Store.Ping}
	if a.Redis != nil {
		checks["cache"] = func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }
	}
	ops := handler.NewMetricsHandler(a.Metrics, checks)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	allocations := handler.NewAllocationHandler(a.Allocations, a.Bulk)
	hostels := handler.NewHostelHandler(a.Catalog, a.Lifecycle)
	occupancy := handler.NewOccupancyHandler(a.Occupancy, a.Exports)
	consistency := handler.NewConsistencyHandler(a.Consistency)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	// Download links carry their own signature.
	api.GET("/occupancy/exports/download", middleware.Audit(a.Audit, models.AuditActionExportDownload, "export"), occupancy.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(a.Auth))

	staff := secured.Group("")
	staff.Use(middleware.RequireRoles(middleware.StaffRoles...))
	staff.POST("/allocations", allocations.Allocate)
	staff.GET("/allocations/:id", allocations.Get)
	staff.DELETE("/allocations/:id", allocations.Deallocate)
	staff.PUT("/students/:id/allocation", allocations.Reassign)
	staff.POST("/allocations/bulk", allocations.Bulk)
	staff.POST("/allocations/bulk/upload", allocations.Upload)
	staff.GET("/hostels", hostels.List)
	staff.GET("/hostels/:id", hostels.Get)
	staff.GET("/hostels/:id/rooms", hostels.ListRooms)
	staff.GET("/occupancy/hostels/:id/sheet", occupancy.Sheet)
	staff.GET("/occupancy/summary", occupancy.Summary)
	staff.POST("/occupancy/exports", middleware.Audit(a.Audit, models.AuditActionExportCreate, "export"), occupancy.CreateExport)

	admin := secured.Group("")
	admin.Use(middleware.RequireRoles(middleware.AdminRoles...))
	admin.POST("/hostels", hostels.Create)
	admin.POST("/hostels/:id/rooms", hostels.AddRooms)
	admin.PUT("/hostels/:id/rooms/reconcile", hostels.Reconcile)
	admin.PATCH("/hostels/:id/archive", hostels.Archive)
	admin.POST("/hostels/:id/reset-allocations", hostels.Reset)
	admin.POST("/rooms/:id/deactivate", hostels.DeactivateRoom)
	admin.POST("/rooms/:id/activate", hostels.ActivateRoom)
	admin.GET("/admin/consistency", middleware.Audit(a.Audit, models.AuditActionConsistencyVerify, "consistency"), consistency.Verify)

	return r
}
