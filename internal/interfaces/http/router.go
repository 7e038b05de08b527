// Package http wires the broker's HTTP surface: repositories, use cases,
// middleware, and routes.
package http

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	abuseUsecases "github.com/worldvpn/broker/internal/application/abuse/usecases"
	ledgerUsecases "github.com/worldvpn/broker/internal/application/ledger/usecases"
	nodeUsecases "github.com/worldvpn/broker/internal/application/node/usecases"
	sessionUsecases "github.com/worldvpn/broker/internal/application/session/usecases"
	transparencyUsecases "github.com/worldvpn/broker/internal/application/transparency/usecases"
	userUsecases "github.com/worldvpn/broker/internal/application/user/usecases"
	"github.com/worldvpn/broker/internal/domain/ledger"
	"github.com/worldvpn/broker/internal/infrastructure/auth"
	"github.com/worldvpn/broker/internal/infrastructure/cache"
	"github.com/worldvpn/broker/internal/infrastructure/config"
	"github.com/worldvpn/broker/internal/infrastructure/email"
	"github.com/worldvpn/broker/internal/infrastructure/permission"
	"github.com/worldvpn/broker/internal/infrastructure/ratelimit"
	"github.com/worldvpn/broker/internal/infrastructure/repository"
	"github.com/worldvpn/broker/internal/interfaces/http/handlers"
	"github.com/worldvpn/broker/internal/interfaces/http/middleware"
	"github.com/worldvpn/broker/internal/shared/db"
	"github.com/worldvpn/broker/internal/shared/logger"

	_ "github.com/worldvpn/broker/docs"
)

// Router holds the configured Gin engine and the handler set.
type Router struct {
	engine *gin.Engine

	healthHandler       *handlers.HealthHandler
	authHandler         *handlers.AuthHandler
	userHandler         *handlers.UserHandler
	nodeHandler         *handlers.NodeHandler
	agentHandler        *handlers.AgentHandler
	sessionHandler      *handlers.SessionHandler
	creditHandler       *handlers.CreditHandler
	transparencyHandler *handlers.TransparencyHandler
	adminHandler        *handlers.AdminHandler

	authMiddleware       *middleware.AuthMiddleware
	nodeTokenMiddleware  *middleware.NodeTokenMiddleware
	permissionMiddleware *middleware.PermissionMiddleware
	rateLimiter          *middleware.RateLimiter
}

// NewRouter builds the full dependency graph behind the HTTP surface.
func NewRouter(database *gorm.DB, redisClient *redis.Client, cfg *config.Config, log logger.Interface) (*Router, error) {
	engine := gin.New()

	userRepo := repository.NewUserRepository(database, log)
	nodeRepo := repository.NewNodeRepository(database, log)
	sessionRepo := repository.NewSessionRepository(database, log)
	ledgerRepo := repository.NewLedgerRepository(database, log)
	txManager := db.NewTransactionManager(database)

	hasher := auth.NewBcryptPasswordHasher(cfg.Auth.Password.BcryptCost)
	jwtService := auth.NewJWTService(cfg.Auth.JWT.Secret, cfg.Auth.JWT.AccessExpMinutes, cfg.Auth.JWT.RefreshExpDays)

	policy, err := ledger.LoadPolicy(cfg.Broker.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load settlement policy: %w", err)
	}

	ipAllocator, err := sessionUsecases.NewVirtualIPAllocator(cfg.Broker.VirtualIPCIDR)
	if err != nil {
		return nil, fmt.Errorf("failed to build virtual IP allocator: %w", err)
	}

	enforcer, err := permission.NewEnforcer(database, cfg.Permission.ModelPath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build permission enforcer: %w", err)
	}
	if err := permission.InitBrokerPermissions(enforcer, log); err != nil {
		return nil, fmt.Errorf("failed to seed permissions: %w", err)
	}

	mailer := email.NewSMTPAlertMailer(cfg.Email, log)
	abuseStore := cache.NewRedisAbuseStore(redisClient, log)
	accumulator := cache.NewRedisTrafficAccumulator(redisClient, nodeRepo, log)

	matcher := sessionUsecases.NewMatcher(nodeRepo, cfg.Broker.Match, log)
	closer := sessionUsecases.NewCloseSessionService(
		sessionRepo, nodeRepo, ledgerRepo, policy, txManager, nil, log)
	abuseGuard := abuseUsecases.NewGuard(
		abuseStore, userRepo, ledgerRepo, closer, mailer, cfg.Abuse, log)

	// User context
	registerUC := userUsecases.NewRegisterUseCase(
		userRepo, ledgerRepo, hasher, txManager, cfg.Broker.SignupBonus, log)
	loginUC := userUsecases.NewLoginUseCase(userRepo, hasher, jwtService, log)
	refreshUC := userUsecases.NewRefreshTokenUseCase(jwtService, log)
	getProfileUC := userUsecases.NewGetProfileUseCase(userRepo, ledgerRepo, log)

	// Node context
	registerNodeUC := nodeUsecases.NewRegisterNodeUseCase(nodeRepo, userRepo, log)
	listMyNodesUC := nodeUsecases.NewListMyNodesUseCase(nodeRepo, userRepo, log)
	discoverUC := nodeUsecases.NewDiscoverNodesUseCase(nodeRepo, log)
	validateTokenUC := nodeUsecases.NewValidateNodeTokenUseCase(nodeRepo, log)
	heartbeatUC := nodeUsecases.NewHeartbeatUseCase(nodeRepo, nil, log)
	offlineUC := nodeUsecases.NewOfflineNodeUseCase(nodeRepo, closer, log)
	setNodeDisabledUC := nodeUsecases.NewSetNodeDisabledUseCase(nodeRepo, closer, log)

	// Session context
	connectUC := sessionUsecases.NewConnectUseCase(
		userRepo, nodeRepo, sessionRepo, ledgerRepo,
		matcher, ipAllocator, abuseGuard, cfg.Broker.MinConnectCredits, log)
	disconnectUC := sessionUsecases.NewDisconnectUseCase(userRepo, sessionRepo, closer, log)
	listMySessionsUC := sessionUsecases.NewListMySessionsUseCase(userRepo, sessionRepo, log)
	reportTrafficUC := sessionUsecases.NewReportTrafficUseCase(
		sessionRepo, nodeRepo, ledgerRepo, policy, closer, abuseGuard, accumulator, nil, log)

	// Ledger context
	getBalanceUC := ledgerUsecases.NewGetBalanceUseCase(userRepo, ledgerRepo, log)
	getHistoryUC := ledgerUsecases.NewGetHistoryUseCase(userRepo, ledgerRepo, log)
	syncCreditsUC := ledgerUsecases.NewSyncCreditsUseCase(userRepo, ledgerRepo, policy, log)
	adjustCreditsUC := ledgerUsecases.NewAdjustCreditsUseCase(userRepo, ledgerRepo, log)
	verifyLedgerUC := ledgerUsecases.NewVerifyLedgerUseCase(ledgerRepo, mailer, log)

	// Transparency context
	statsUC := transparencyUsecases.NewGetNetworkStatsUseCase(nodeRepo, sessionRepo, ledgerRepo, log)
	publicSessionsUC := transparencyUsecases.NewListPublicSessionsUseCase(sessionRepo, nodeRepo, log)

	return &Router{
		engine: engine,

		healthHandler:       handlers.NewHealthHandler(),
		authHandler:         handlers.NewAuthHandler(registerUC, loginUC, refreshUC, log),
		userHandler:         handlers.NewUserHandler(getProfileUC, log),
		nodeHandler:         handlers.NewNodeHandler(registerNodeUC, listMyNodesUC, discoverUC, log),
		agentHandler:        handlers.NewAgentHandler(heartbeatUC, offlineUC, reportTrafficUC, log),
		sessionHandler:      handlers.NewSessionHandler(connectUC, disconnectUC, listMySessionsUC, log),
		creditHandler:       handlers.NewCreditHandler(getBalanceUC, getHistoryUC, syncCreditsUC, log),
		transparencyHandler: handlers.NewTransparencyHandler(statsUC, publicSessionsUC, log),
		adminHandler:        handlers.NewAdminHandler(adjustCreditsUC, verifyLedgerUC, setNodeDisabledUC, log),

		authMiddleware:       middleware.NewAuthMiddleware(jwtService, log),
		nodeTokenMiddleware:  middleware.NewNodeTokenMiddleware(validateTokenUC, log),
		permissionMiddleware: middleware.NewPermissionMiddleware(enforcer, log),
		rateLimiter:          middleware.NewRateLimiter(ratelimit.NewRedisLimiter(redisClient), cfg.RateLimit.Requests, cfg.RateLimit.Window),
	}, nil
}

// SetupRoutes configures all HTTP routes.
func (r *Router) SetupRoutes(cfg *config.Config, log logger.Interface) {
	r.engine.Use(middleware.Logger(log))
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.engine.Use(middleware.SecurityHeaders())

	r.engine.GET("/health", r.healthHandler.Health)
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.engine.Group("/api/v1")

	r.setupAuthRoutes(v1)
	r.setupUserRoutes(v1)
	r.setupNodeRoutes(v1)
	r.setupSessionRoutes(v1)
	r.setupCreditRoutes(v1)
	r.setupAgentRoutes(v1)
	r.setupTransparencyRoutes(v1)
	r.setupAdminRoutes(v1)
}

func (r *Router) setupAuthRoutes(v1 *gin.RouterGroup) {
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", r.rateLimiter.Limit(), r.authHandler.Register)
		authGroup.POST("/login", r.rateLimiter.Limit(), r.authHandler.Login)
		authGroup.POST("/refresh", r.authHandler.Refresh)
	}
}

func (r *Router) setupUserRoutes(v1 *gin.RouterGroup) {
	users := v1.Group("/users")
	users.Use(r.authMiddleware.RequireAuth())
	{
		users.GET("/me", r.userHandler.GetProfile)
	}
}

func (r *Router) setupNodeRoutes(v1 *gin.RouterGroup) {
	nodes := v1.Group("/nodes")
	nodes.Use(r.authMiddleware.RequireAuth())
	{
		nodes.POST("",
			r.permissionMiddleware.RequirePermission("node", "register"),
			r.nodeHandler.Register)
		nodes.GET("",
			r.permissionMiddleware.RequirePermission("node", "read"),
			r.nodeHandler.Discover)
		nodes.GET("/mine",
			r.permissionMiddleware.RequirePermission("node", "read"),
			r.nodeHandler.ListMine)
	}
}

func (r *Router) setupSessionRoutes(v1 *gin.RouterGroup) {
	sessions := v1.Group("/sessions")
	sessions.Use(r.authMiddleware.RequireAuth())
	{
		sessions.POST("",
			r.permissionMiddleware.RequirePermission("session", "connect"),
			r.sessionHandler.Connect)
		sessions.GET("",
			r.permissionMiddleware.RequirePermission("session", "read"),
			r.sessionHandler.ListMine)
		sessions.DELETE("/:sid",
			r.permissionMiddleware.RequirePermission("session", "close"),
			r.sessionHandler.Disconnect)
	}
}

func (r *Router) setupCreditRoutes(v1 *gin.RouterGroup) {
	credits := v1.Group("/credits")
	credits.Use(r.authMiddleware.RequireAuth())
	credits.Use(r.permissionMiddleware.RequirePermission("ledger", "read"))
	{
		credits.GET("/balance", r.creditHandler.GetBalance)
		credits.GET("/history", r.creditHandler.GetHistory)
		credits.POST("/sync", r.creditHandler.Sync)
	}
}

func (r *Router) setupAgentRoutes(v1 *gin.RouterGroup) {
	agent := v1.Group("/agent")
	agent.Use(r.nodeTokenMiddleware.RequireNodeToken())
	{
		agent.POST("/heartbeat", r.agentHandler.Heartbeat)
		agent.POST("/sessions/:sid/traffic", r.agentHandler.ReportTraffic)
		agent.POST("/offline", r.agentHandler.Offline)
	}
}

func (r *Router) setupTransparencyRoutes(v1 *gin.RouterGroup) {
	transparency := v1.Group("/transparency")
	{
		transparency.GET("/stats", r.transparencyHandler.GetStats)
		transparency.GET("/sessions", r.transparencyHandler.ListActiveSessions)
		transparency.GET("/history", r.transparencyHandler.ListSessionHistory)
	}
}

func (r *Router) setupAdminRoutes(v1 *gin.RouterGroup) {
	admin := v1.Group("/admin")
	admin.Use(r.authMiddleware.RequireAuth())
	{
		admin.POST("/users/:sid/credits",
			r.permissionMiddleware.RequirePermission("ledger", "adjust"),
			r.adminHandler.AdjustCredits)
		admin.POST("/ledger/verify",
			r.permissionMiddleware.RequirePermission("ledger", "verify"),
			r.adminHandler.VerifyLedger)
		admin.POST("/nodes/:sid/disable",
			r.permissionMiddleware.RequirePermission("node", "disable"),
			r.adminHandler.DisableNode)
		admin.POST("/nodes/:sid/enable",
			r.permissionMiddleware.RequirePermission("node", "disable"),
			r.adminHandler.EnableNode)
	}
}

// GetEngine returns the Gin engine.
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// Run starts the HTTP server.
func (r *Router) Run(addr string) error {
	return r.engine.Run(addr)
}
