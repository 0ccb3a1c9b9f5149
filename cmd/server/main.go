// Package main runs the RatePro API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ratepro/backend/config"
	"github.com/ratepro/backend/internal/actions"
	"github.com/ratepro/backend/internal/analytics"
	"github.com/ratepro/backend/internal/auth"
	"github.com/ratepro/backend/internal/authz"
	"github.com/ratepro/backend/internal/contacts"
	"github.com/ratepro/backend/internal/departments"
	"github.com/ratepro/backend/internal/enrichment"
	"github.com/ratepro/backend/internal/invites"
	"github.com/ratepro/backend/internal/media"
	"github.com/ratepro/backend/internal/middleware"
	"github.com/ratepro/backend/internal/models"
	"github.com/ratepro/backend/internal/notifications"
	"github.com/ratepro/backend/internal/permissions"
	"github.com/ratepro/backend/internal/responses"
	"github.com/ratepro/backend/internal/surveys"
	"github.com/ratepro/backend/internal/sysconfig"
	"github.com/ratepro/backend/internal/templates"
	"github.com/ratepro/backend/internal/tenants"
	"github.com/ratepro/backend/internal/users"
	"github.com/ratepro/backend/internal/worker"
	"github.com/ratepro/backend/pkg/database"
	"github.com/ratepro/backend/pkg/queue"
	"github.com/ratepro/backend/pkg/redis"
	"github.com/ratepro/backend/pkg/response"
	"github.com/ratepro/backend/pkg/secrets"
	"github.com/ratepro/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.MediaBucket != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			MediaBucket:          cfg.AWS.MediaBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("media storage disabled", zap.Error(err))
			s3Client = nil
		}
	}

	var box *secrets.Box
	if cfg.Platform.EncryptionKey != "" {
		box, err = secrets.NewBox(cfg.Platform.EncryptionKey)
		if err != nil {
			logger.Fatal("platform encryption key", zap.Error(err))
		}
	}

	// Repositories.
	authRepo := auth.NewRepository(pool)
	permissionRepo := permissions.NewRepository(pool)
	tenantRepo := tenants.NewRepository(pool)
	departmentRepo := departments.NewRepository(pool)
	userRepo := users.NewRepository(pool)
	contactRepo := contacts.NewRepository(pool)
	inviteRegistry := invites.NewRegistry(pool)
	surveyRepo := surveys.NewRepository(pool)
	responseRepo := responses.NewRepository(pool)
	actionRepo := actions.NewRepository(pool)
	notificationRepo := notifications.NewRepository(pool)
	analyticsRepo := analytics.NewRepository(pool)
	configRepo := sysconfig.NewRepository(pool)
	templateRepo := templates.NewRepository(pool)

	engine := authz.NewEngine(permissionRepo, logger)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpireHours, cfg.JWT.RefreshExpireHours)
	hub := notifications.NewHub(logger)

	// Job queue: durable Redis lists consumed by cmd/worker, or inline
	// execution when queues are disabled.
	var jobs queue.Queue
	var inlineQueue *queue.InlineQueue
	if cfg.Queues.Enabled {
		jobs = queue.NewRedisQueue(rdb.Client, logger)
	} else {
		inlineQueue = queue.NewInlineQueue(logger)
		jobs = inlineQueue
	}

	// Domain services.
	statsSyncer := contacts.NewStatsSyncer(contactRepo, logger)
	audienceResolver := surveys.NewAudienceResolver(contactRepo)
	aggregates := surveys.NewAggregateUpdater(surveyRepo, logger)
	proofSigner := surveys.NewProofSigner(cfg.JWT.Secret)
	submissionStore := responses.NewSubmissionStore(responseRepo, inviteRegistry)
	ingestor := responses.NewIngestor(surveyRepo, inviteRegistry, submissionStore,
		proofSigner, jobs, logger)

	aiClient := enrichment.NewGeminiClient(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model)
	pipeline := enrichment.NewPipeline(responseRepo, surveyRepo, actionRepo,
		notificationRepo, hub, statsSyncer, aggregates, aiClient, jobs, logger)
	emailSender := &worker.LogSender{Logger: logger}
	if inlineQueue != nil {
		w := worker.New(nil, pipeline, emailSender, logger)
		inlineQueue.SetRunner(w.Execute)
		logger.Info("queues disabled, jobs run inline")
	}

	// Handlers.
	authHandler := auth.NewHandler(authRepo, jwtService, jobs, cfg.JWT.OTPExpireMinutes,
		cfg.Server.PublicBaseURL, logger)
	permissionHandler := permissions.NewHandler(permissionRepo, logger)
	tenantHandler := tenants.NewHandler(tenantRepo, logger)
	departmentHandler := departments.NewHandler(departmentRepo, logger)
	userHandler := users.NewHandler(userRepo, logger)
	contactHandler := contacts.NewHandler(contactRepo, logger)
	surveyHandler := surveys.NewHandler(surveyRepo, engine, audienceResolver,
		inviteRegistry, statsSyncer, jobs, proofSigner, cfg.Server.PublicBaseURL, logger)
	responseHandler := responses.NewHandler(ingestor, responseRepo, surveyRepo,
		inviteRegistry, engine, logger)
	actionHandler := actions.NewHandler(actionRepo, surveyRepo, engine, logger)
	notificationHandler := notifications.NewHandler(notificationRepo, hub, logger)
	analyticsHandler := analytics.NewHandler(analyticsRepo, actionRepo, logger)
	configHandler := sysconfig.NewHandler(configRepo, box, jobs, logger)
	templateHandler := templates.NewHandler(templateRepo, logger)
	mediaHandler := media.NewHandler(s3Client, surveyRepo, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics())

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public auth endpoints, rate-limited per IP.
	authGroup := router.Group("/auth")
	authGroup.Use(middleware.RateLimit(rdb.Client, "auth", 20, time.Minute))
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/verify-email", authHandler.VerifyEmail)
		authGroup.POST("/resend-otp", authHandler.ResendOTP)
		authGroup.POST("/forgot-password", authHandler.ForgotPassword)
		authGroup.POST("/reset-password", authHandler.ResetPassword)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	// Public respondent endpoints. No JWT: respondents are anonymous or
	// identified by invite/resume tokens.
	public := router.Group("/public")
	public.Use(middleware.RateLimit(rdb.Client, "submit", 60, time.Minute))
	{
		public.POST("/responses", responseHandler.Submit)
		public.GET("/invites/:token", responseHandler.ValidateInvite)
		public.GET("/responses/resume/:token", responseHandler.Resume)
		public.POST("/surveys/:id/verify-password", surveyHandler.VerifyPassword)
		public.POST("/media/upload-url", mediaHandler.UploadURL)
	}

	// Everything below requires a valid access token; the principal is
	// reloaded from the user record on each request.
	api := router.Group("")
	api.Use(middleware.JWT(jwtService, authRepo))

	api.GET("/auth/me", authHandler.Me)
	api.POST("/auth/logout", authHandler.Logout)

	platform := authz.Route{Scope: authz.ScopePlatform}
	tenant := authz.Route{Scope: authz.ScopeTenant}
	companyAdmin := []models.Role{models.RoleCompanyAdmin}

	gate := func(action string, base authz.Route, mut ...func(*authz.Route)) gin.HandlerFunc {
		route := base
		route.Action = action
		for _, m := range mut {
			m(&route)
		}
		return middleware.Authorize(engine, route)
	}
	withRoles := func(roles ...models.Role) func(*authz.Route) {
		return func(r *authz.Route) { r.Roles = roles }
	}
	withPermission := func(p string) func(*authz.Route) {
		return func(r *authz.Route) { r.Permission = p }
	}
	surveyScoped := func(r *authz.Route) { r.SurveyScoped = true }

	// Platform administration.
	api.POST("/tenants", gate("tenant:create", platform), tenantHandler.Create)
	api.GET("/tenants", gate("tenant:list", platform), tenantHandler.List)
	api.GET("/tenants/:id", gate("tenant:read", platform), tenantHandler.Get)
	api.PATCH("/tenants/:id", gate("tenant:update", platform), tenantHandler.Update)
	api.POST("/tenants/:id/suspend", gate("tenant:suspend", platform), tenantHandler.Suspend)
	api.POST("/tenants/:id/activate", gate("tenant:activate", platform), tenantHandler.Activate)
	api.GET("/tenants/:id/stats", gate("tenant:stats", platform), tenantHandler.Stats)

	api.GET("/system-config", gate("systemConfig:read", platform), configHandler.List)
	api.GET("/system-config/category/:category", gate("systemConfig:read", platform), configHandler.ByCategory)
	api.PUT("/system-config", gate("systemConfig:write", platform), configHandler.Upsert)
	api.DELETE("/system-config/:key", gate("systemConfig:write", platform), configHandler.Reset)
	api.POST("/system-config/test-email",
		gate("systemConfig:test", platform),
		middleware.RateLimit(rdb.Client, "test-email", 5, time.Minute),
		configHandler.TestEmail)

	// Tenant administration.
	api.POST("/departments", gate("department:create", tenant, withRoles(companyAdmin...)), departmentHandler.Create)
	api.GET("/departments", gate("department:list", tenant), departmentHandler.List)
	api.PATCH("/departments/:id", gate("department:update", tenant, withRoles(companyAdmin...)), departmentHandler.Rename)
	api.DELETE("/departments/:id", gate("department:delete", tenant, withRoles(companyAdmin...)), departmentHandler.Delete)

	api.POST("/users", gate("user:create", tenant, withRoles(companyAdmin...)), userHandler.Create)
	api.GET("/users", gate("user:list", tenant), userHandler.List)
	api.GET("/users/:id", gate("user:read", tenant), userHandler.Get)
	api.PATCH("/users/:id", gate("user:update", tenant), userHandler.Update)
	api.DELETE("/users/:id", gate("user:delete", tenant, withRoles(companyAdmin...)), userHandler.Delete)

	api.GET("/permissions", gate("permission:list", tenant), permissionHandler.ListPermissions)
	api.GET("/permissions/me", middleware.Authorize(engine,
		authz.Route{Action: "permission:self", Scope: authz.ScopeShared}), permissionHandler.MyPermissions)
	api.POST("/custom-roles", gate("permission:assign", tenant, withRoles(companyAdmin...)), permissionHandler.CreateCustomRole)
	api.GET("/custom-roles", gate("permission:list", tenant), permissionHandler.ListCustomRoles)
	api.PATCH("/custom-roles/:id", gate("permission:assign", tenant, withRoles(companyAdmin...)), permissionHandler.UpdateCustomRole)
	api.DELETE("/custom-roles/:id", gate("permission:assign", tenant, withRoles(companyAdmin...)), permissionHandler.DeleteCustomRole)
	api.POST("/permission-assignments", gate("permission:assign", tenant, withRoles(companyAdmin...)), permissionHandler.CreateAssignment)
	api.DELETE("/permission-assignments/:id", gate("permission:assign", tenant, withRoles(companyAdmin...)), permissionHandler.DeleteAssignment)

	// Contacts.
	api.POST("/contacts", gate("contact:create", tenant, withPermission("contact:create")), contactHandler.Create)
	api.GET("/contacts", gate("contact:list", tenant), contactHandler.List)
	api.GET("/contacts/:id", gate("contact:read", tenant), contactHandler.Get)
	api.PATCH("/contacts/:id", gate("contact:update", tenant, withPermission("contact:update")), contactHandler.Update)
	api.DELETE("/contacts/:id", gate("contact:delete", tenant, withPermission("contact:delete")), contactHandler.Delete)
	api.POST("/contacts/bulk-upload", gate("contact:create", tenant, withPermission("contact:create")), contactHandler.BulkUpload)
	api.GET("/contacts/export", gate("contact:export", tenant), contactHandler.Export)
	api.POST("/categories", gate("category:create", tenant, withPermission("contact:create")), contactHandler.CreateCategory)
	api.GET("/categories", gate("category:list", tenant), contactHandler.ListCategories)
	api.DELETE("/categories/:id", gate("category:delete", tenant, withPermission("contact:delete")), contactHandler.DeleteCategory)

	// Surveys. The survey scope hard-denies platform admins at the route
	// and blocks department-less members; per-target department visibility
	// is enforced in the handlers with the loaded survey.
	api.POST("/surveys", gate("survey:create", tenant, surveyScoped, withPermission("survey:create")), surveyHandler.Create)
	api.GET("/surveys", gate("survey:list", tenant, surveyScoped), surveyHandler.List)
	api.GET("/surveys/:id", gate("survey:read", tenant, surveyScoped), surveyHandler.Get)
	api.PATCH("/surveys/:id", gate("survey:update", tenant, surveyScoped, withPermission("survey:update")), surveyHandler.Update)
	api.DELETE("/surveys/:id", gate("survey:delete", tenant, surveyScoped, withPermission("survey:delete")), surveyHandler.Delete)
	api.POST("/surveys/:id/activate", gate("survey:activate", tenant, surveyScoped, withPermission("survey:activate")), surveyHandler.Activate)
	api.POST("/surveys/:id/deactivate", gate("survey:activate", tenant, surveyScoped, withPermission("survey:activate")), surveyHandler.Deactivate)
	api.POST("/surveys/:id/publish", gate("survey:publish", tenant, surveyScoped, withPermission("survey:publish")), surveyHandler.Publish)
	api.GET("/surveys/:id/invites", gate("survey:read", tenant, surveyScoped), surveyHandler.ListInvites)

	// Responses.
	api.GET("/responses", gate("response:list", tenant), responseHandler.List)
	api.GET("/responses/flagged", gate("response:list", tenant), responseHandler.Flagged)
	api.GET("/responses/:id", gate("response:read", tenant), responseHandler.Get)

	// Actions.
	api.POST("/actions", gate("action:create", tenant, withPermission("action:create")), actionHandler.Create)
	api.GET("/actions", gate("action:list", tenant), actionHandler.List)
	api.GET("/actions/:id", gate("action:read", tenant), actionHandler.Get)
	api.PATCH("/actions/:id", gate("action:update", tenant, withPermission("action:update")), actionHandler.Update)
	api.POST("/actions/:id/assign", gate("surveyAction:assign", tenant), actionHandler.Assign)
	api.DELETE("/actions/:id", gate("action:delete", tenant, withRoles(companyAdmin...)), actionHandler.Delete)

	// Analytics.
	api.GET("/analytics/executive", gate("analytics:read", tenant), analyticsHandler.Executive)
	api.GET("/analytics/alerts", gate("analytics:read", tenant), analyticsHandler.Alerts)
	api.GET("/analytics/nps", gate("analytics:read", tenant), analyticsHandler.NPS)
	api.GET("/analytics/csi", gate("analytics:read", tenant), analyticsHandler.CSI)
	api.GET("/analytics/sentiment", gate("analytics:read", tenant), analyticsHandler.Sentiment)
	api.GET("/analytics/sentiment/surveys/:id", gate("analytics:read", tenant), analyticsHandler.SentimentBySurvey)
	api.GET("/analytics/sentiment/heatmap", gate("analytics:read", tenant), analyticsHandler.SentimentHeatmap)
	api.GET("/analytics/sentiment/breakdown", gate("analytics:read", tenant), analyticsHandler.SentimentBreakdown)
	api.GET("/analytics/trends/satisfaction", gate("analytics:read", tenant), analyticsHandler.SatisfactionTrend)
	api.GET("/analytics/trends/volume", gate("analytics:read", tenant), analyticsHandler.VolumeTrend)
	api.GET("/analytics/trends/complaints", gate("analytics:read", tenant), analyticsHandler.ComplaintTrends)
	api.GET("/analytics/trends/engagement", gate("analytics:read", tenant), analyticsHandler.Engagement)
	api.GET("/analytics/trends/compare", gate("analytics:read", tenant), analyticsHandler.CompareTrend)
	api.GET("/analytics/trends/all", gate("analytics:read", tenant), analyticsHandler.AllTrends)
	api.GET("/analytics/export", gate("analytics:export", tenant), analyticsHandler.Export)

	// Notifications are per-user across scopes.
	shared := authz.Route{Scope: authz.ScopeShared}
	api.GET("/notifications", gate("notification:list", shared), notificationHandler.List)
	api.GET("/notifications/unread-count", gate("notification:list", shared), notificationHandler.UnreadCount)
	api.POST("/notifications/:id/read", gate("notification:update", shared), notificationHandler.MarkRead)
	api.POST("/notifications/:id/archive", gate("notification:update", shared), notificationHandler.Archive)
	api.POST("/notifications/read-all", gate("notification:update", shared), notificationHandler.MarkAllRead)
	api.DELETE("/notifications/:id", gate("notification:delete", shared), notificationHandler.Delete)
	api.POST("/notifications/batch", gate("notification:create", tenant, withRoles(companyAdmin...)), notificationHandler.BatchCreate)
	api.GET("/notifications/stream", gate("notification:stream", shared), notificationHandler.Stream)

	// Email templates.
	api.POST("/email-templates", gate("template:create", tenant, withRoles(companyAdmin...)), templateHandler.Create)
	api.GET("/email-templates", gate("template:read", tenant, withPermission("template:read")), templateHandler.List)
	api.GET("/email-templates/:id", gate("template:read", tenant, withPermission("template:read")), templateHandler.Get)
	api.PATCH("/email-templates/:id", gate("template:update", tenant, withRoles(companyAdmin...)), templateHandler.Update)
	api.DELETE("/email-templates/:id", gate("template:delete", tenant, withRoles(companyAdmin...)), templateHandler.Delete)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
