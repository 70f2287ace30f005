package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskboard/internal/audit"
	"taskboard/internal/config"
	"taskboard/internal/ephemeral"
	"taskboard/internal/handler"
	"taskboard/internal/lock"
	"taskboard/internal/middleware"
	"taskboard/internal/model"
	"taskboard/internal/permission"
	"taskboard/internal/presence"
	"taskboard/internal/realtime"
	"taskboard/internal/repository"
	"taskboard/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Server struct {
	Engine    *gin.Engine
	DB        *gorm.DB
	Ephemeral ephemeral.Store
	Config    *config.Config
}

func Init(cfg *config.Config) (*Server, error) {
	// Setup GORM
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("❌ failed to connect to DB: %w", err)
	}
	log.Println("✅ Connected to database")

	if err := db.AutoMigrate(
		&model.User{},
		&model.Board{},
		&model.BoardMember{},
		&model.Column{},
		&model.Card{},
		&model.Comment{},
		&model.AuditEvent{},
	); err != nil {
		return nil, fmt.Errorf("❌ failed to migrate schema: %w", err)
	}

	// Setup Redis-backed ephemeral store
	store, err := ephemeral.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("❌ failed to connect to Redis: %w", err)
	}
	log.Println("✅ Connected to ephemeral store")

	// Setup Gin
	r := gin.Default()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	boardRepo := repository.NewBoardRepository(db)
	memberRepo := repository.NewBoardMemberRepository(db)
	columnRepo := repository.NewColumnRepository(db)
	cardRepo := repository.NewCardRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// Collaborative layer
	resolver := permission.NewResolver(boardRepo, memberRepo)
	locks := lock.NewManager(store)
	tracker := presence.NewTracker(store, cfg.PresenceWindow, cfg.TypingWindow)
	hub := realtime.NewHub()
	recorder := audit.NewRecorder(auditRepo)

	sync := service.NewSync(
		boardRepo, columnRepo, cardRepo, memberRepo, commentRepo,
		resolver, locks, recorder, hub,
		cfg.MoveLockTTL, cfg.EditLockTTL,
	)

	// Initialize handlers
	userHandler := handler.NewUserHandler(userRepo, cfg.JWTSecret)
	boardHandler := handler.NewBoardHandler(boardRepo, memberRepo, auditRepo, resolver, sync)
	memberHandler := handler.NewMemberHandler(userRepo, memberRepo, resolver, sync)
	columnHandler := handler.NewColumnHandler(columnRepo, resolver, sync)
	cardHandler := handler.NewCardHandler(cardRepo, columnRepo, resolver, sync)
	commentHandler := handler.NewCommentHandler(commentRepo, cardRepo, columnRepo, resolver, sync)
	wsHandler := handler.NewWSHandler(hub, tracker, resolver, userRepo, sync, cfg.WSAllowedOrigins)

	// Public routes
	r.POST("/register", userHandler.Register)
	r.POST("/login", userHandler.Login)
	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unreachable"})
			return
		}
		if err := store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusOK, gin.H{"status": "degraded", "detail": "ephemeral store unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Protected routes - require authentication
	authorized := r.Group("/")
	authorized.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	{
		// Board routes
		authorized.POST("/boards", boardHandler.Create)
		authorized.GET("/boards", boardHandler.GetAll)
		authorized.GET("/boards/:id", boardHandler.GetByID)
		authorized.PUT("/boards/:id", boardHandler.Update)
		authorized.POST("/boards/:id/archive", boardHandler.Archive)
		authorized.GET("/boards/:id/audit", boardHandler.AuditTrail)
		authorized.GET("/boards/:id/presence", wsHandler.Presence)

		// Membership routes
		authorized.POST("/boards/:id/members", memberHandler.Invite)
		authorized.GET("/boards/:id/members", memberHandler.List)
		authorized.PUT("/boards/:id/members/:user_id", memberHandler.ChangeRole)
		authorized.DELETE("/boards/:id/members/:user_id", memberHandler.Remove)
		authorized.GET("/boards/:id/permissions", memberHandler.Permissions)

		// Column routes
		authorized.POST("/columns", columnHandler.Create)
		authorized.GET("/boards/:id/columns", columnHandler.GetAll)
		authorized.GET("/columns/:id", columnHandler.GetByID)
		authorized.PUT("/columns/:id", columnHandler.Update)
		authorized.DELETE("/columns/:id", columnHandler.Delete)
		authorized.POST("/columns/:id/move", columnHandler.Move)
		authorized.POST("/boards/:id/columns/reorder", columnHandler.Reorder)

		// Card routes
		authorized.POST("/cards", cardHandler.Create)
		authorized.GET("/cards/:id", cardHandler.GetByID)
		authorized.GET("/columns/:id/cards", cardHandler.GetByColumnID)
		authorized.PUT("/cards/:id", cardHandler.Update)
		authorized.DELETE("/cards/:id", cardHandler.Delete)
		authorized.POST("/cards/:id/move", cardHandler.Move)
		authorized.POST("/cards/:id/assign", cardHandler.Assign)
		authorized.DELETE("/cards/:id/assign", cardHandler.Unassign)
		authorized.POST("/cards/:id/lock", cardHandler.Lock)
		authorized.DELETE("/cards/:id/lock", cardHandler.Unlock)

		// Comment routes
		authorized.POST("/cards/:id/comments", commentHandler.Create)
		authorized.GET("/cards/:id/comments", commentHandler.GetByCardID)
		authorized.PUT("/comments/:comment_id", commentHandler.Update)
		authorized.DELETE("/comments/:comment_id", commentHandler.Delete)

		// Real-time transport
		authorized.GET("/ws", wsHandler.Serve)
	}

	return &Server{
		Engine:    r,
		DB:        db,
		Ephemeral: store,
		Config:    cfg,
	}, nil
}

func (s *Server) Run() {
	srv := &http.Server{
		Addr:    ":" + s.Config.ServerPort,
		Handler: s.Engine,
	}

	go func() {
		log.Printf("🚀 Server running on port %s\n", s.Config.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %s", err)
	}

	if err := s.Ephemeral.Close(); err != nil {
		log.Printf("⚠️  Failed to close ephemeral store: %v", err)
	}

	log.Println("✅ Server exited properly")
}
