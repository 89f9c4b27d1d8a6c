package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/fieldvue/dispatch-api/api/swagger"
	"github.com/fieldvue/dispatch-api/internal/handler"
	"github.com/fieldvue/dispatch-api/internal/middleware"
	"github.com/fieldvue/dispatch-api/internal/repository"
	"github.com/fieldvue/dispatch-api/internal/service"
	"github.com/fieldvue/dispatch-api/pkg/cache"
	"github.com/fieldvue/dispatch-api/pkg/config"
	"github.com/fieldvue/dispatch-api/pkg/database"
	"github.com/fieldvue/dispatch-api/pkg/logger"
	corsmiddleware "github.com/fieldvue/dispatch-api/pkg/middleware/cors"
	reqidmiddleware "github.com/fieldvue/dispatch-api/pkg/middleware/requestid"
)

// @title FieldVue Dispatch API
// @version 0.1.0
// @description Interval layout and drag reassignment engine for the dispatch timeline
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, running without cache and events", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	appointmentRepo := repository.NewAppointmentRepository(db)
	resourceRepo := repository.NewResourceRepository(db)

	layoutSvc := service.NewLayoutService(cfg.Timeline, logr)
	travelSvc := service.NewTravelGapService(cfg.Travel, logr)
	bufferSvc := service.NewBufferWindowService(cfg.Buffer, cfg.Timeline, time.Now(), logr)
	virtSvc := service.NewVirtualizerService(cfg.Virtualizer, logr)
	recurrenceSvc := service.NewRecurrenceService(logr)
	boardSvc := service.NewBoardService(layoutSvc, travelSvc, bufferSvc, virtSvc, recurrenceSvc,
		appointmentRepo, resourceRepo, redisClient, metricsSvc, logr)
	mutationSvc := service.NewMutationService(boardSvc, appointmentRepo, validate, metricsSvc, logr)
	dragSvc := service.NewDragSessionService(boardSvc, bufferSvc, virtSvc, mutationSvc,
		service.NewAutoScrollPhysics(cfg.AutoScroll), cfg.Timeline, metricsSvc, logr)
	appointmentSvc := service.NewAppointmentService(appointmentRepo, boardSvc, validate, logr)
	calendarSvc := service.NewCalendarService(boardSvc, recurrenceSvc, cfg.Feeds.ICSEnabled, logr)
	authSvc := service.NewAuthService(cfg.JWT)

	theme, err := service.LoadRenderTheme(cfg.Render.ThemePath)
	if err != nil {
		logr.Sugar().Warnw("render theme fell back to defaults", "error", err)
	}
	renderSvc := service.NewRenderService(boardSvc, bufferSvc, theme, logr)

	exportSvc := service.NewExportService(boardSvc, cfg.Exports, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := boardSvc.Refresh(ctx); err != nil {
		logr.Sugar().Warnw("initial board refresh failed, starting empty", "error", err)
	}
	if redisClient != nil {
		go boardSvc.Listen(ctx)
	}
	if err := exportSvc.Start(ctx); err != nil {
		logr.Sugar().Fatalw("export pipeline failed to start", "error", err)
	}
	defer exportSvc.Stop()

	boardHandler := handler.NewBoardHandler(boardSvc, virtSvc, renderSvc)
	appointmentHandler := handler.NewAppointmentHandler(appointmentSvc, boardSvc, mutationSvc)
	dragHandler := handler.NewDragHandler(dragSvc)
	resourceHandler := handler.NewResourceHandler(resourceRepo, calendarSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.GET("/board", boardHandler.View)
		api.GET("/board/virtualization", boardHandler.Virtualization)
		api.GET("/board/svg", boardHandler.SVG)

		api.GET("/appointments", appointmentHandler.List)
		api.GET("/appointments/unassigned", appointmentHandler.Unassigned)
		api.GET("/appointments/:id", appointmentHandler.Get)

		api.GET("/resources", resourceHandler.List)
		api.GET("/resources/:id", resourceHandler.Get)
		api.GET("/resources/:id/feed.ics", resourceHandler.Feed)

		api.GET("/exports/:id", exportHandler.Status)
		api.GET("/exports/:id/download", exportHandler.Download)
		api.GET("/drag/:id", dragHandler.Get)
	}

	protected := r.Group(cfg.APIPrefix)
	protected.Use(middleware.JWT(authSvc))
	{
		protected.POST("/board/refresh", boardHandler.Refresh)

		protected.POST("/appointments", appointmentHandler.Create)
		protected.DELETE("/appointments/:id", appointmentHandler.Delete)
		protected.POST("/appointments/:id/move", appointmentHandler.Move)
		protected.POST("/appointments/:id/assign", appointmentHandler.Assign)
		protected.POST("/appointments/:id/unassign", appointmentHandler.Unassign)
		protected.POST("/appointments/:id/retime", appointmentHandler.Retime)
		protected.POST("/appointments/:id/reorder", appointmentHandler.ReorderPool)

		protected.POST("/drag/start", dragHandler.Start)
		protected.POST("/drag/:id/move", dragHandler.Move)
		protected.POST("/drag/:id/drop", dragHandler.Drop)
		protected.POST("/drag/:id/cancel", dragHandler.Cancel)

		protected.POST("/exports/day-sheet", exportHandler.Request)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
