package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ecotrackhq/ecotrack/internal/account"
	"github.com/ecotrackhq/ecotrack/internal/backup"
	"github.com/ecotrackhq/ecotrack/internal/config"
	"github.com/ecotrackhq/ecotrack/internal/email"
	"github.com/ecotrackhq/ecotrack/internal/handler"
	"github.com/ecotrackhq/ecotrack/internal/middleware"
	"github.com/ecotrackhq/ecotrack/internal/store"
	ws "github.com/ecotrackhq/ecotrack/internal/websocket"
)

type Server struct {
	db       *sql.DB
	hub      *ws.Hub
	authH    *handler.AuthHandler
	houseH   *handler.HouseHandler
	profileH *handler.ProfileHandler
	postH    *handler.PostHandler

	sessionStore *store.SessionStore
	codeStore    *store.VerificationCodeStore
	rateLimiter  *middleware.RateLimiter
	backupMgr    *backup.Manager
	jwtSecret    []byte
	logger       *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	profileStore := store.NewProfileStore(db)
	houseStore := store.NewHouseStore(db)
	sessionStore := store.NewSessionStore(db)
	codeStore := store.NewVerificationCodeStore(db)
	backupStore := store.NewBackupStore(db)

	emailClient := email.NewClient(cfg.PostmarkToken, cfg.PostmarkFrom, cfg.PostmarkBaseURL)

	jwtSecret := []byte(cfg.JWTSecret)
	accounts := account.NewService(
		userStore, profileStore, houseStore, sessionStore, codeStore,
		emailClient, jwtSecret, cfg.AccessTTL, cfg.SessionTTL,
		logger.With("component", "account"),
	)

	backupMgr := backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		},
		DBPath:        cfg.DBPath,
		Passphrase:    cfg.BackupPassphrase,
		ScheduleHour:  cfg.BackupScheduleHour,
		RetentionDays: cfg.BackupRetentionDays,
	}, db, backupStore, logger.With("component", "backup"), func(s backup.Status) {
		hub.Broadcast(ws.Message{
			Type:   "backup_status",
			Entity: "backup",
			Action: string(s.State),
			Extra: map[string]any{
				"in_progress": s.InProgress,
				"error":       s.Error,
			},
		})
	})

	return &Server{
		db:           db,
		hub:          hub,
		authH:        handler.NewAuthHandler(accounts, hub, logger.With("component", "auth")),
		houseH:       handler.NewHouseHandler(houseStore, hub, logger.With("component", "house")),
		profileH:     handler.NewProfileHandler(profileStore, logger.With("component", "profile")),
		postH:        handler.NewPostHandler(store.NewPostStore(db), houseStore, hub, logger.With("component", "post")),
		sessionStore: sessionStore,
		codeStore:    codeStore,
		rateLimiter:  middleware.NewRateLimiter(),
		backupMgr:    backupMgr,
		jwtSecret:    jwtSecret,
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// VerificationCodeStore returns the code store for cleanup tasks.
func (s *Server) VerificationCodeStore() *store.VerificationCodeStore {
	return s.codeStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupMgr
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/signup", s.rateLimitedHandler(s.authH.SignUp))
	outerMux.HandleFunc("POST /api/auth/signin", s.rateLimitedHandler(s.authH.SignIn))
	outerMux.HandleFunc("POST /api/auth/verify", s.rateLimitedHandler(s.authH.Verify))
	outerMux.HandleFunc("POST /api/auth/resend", s.rateLimitedHandler(s.authH.Resend))
	outerMux.HandleFunc("POST /api/auth/refresh", s.authH.Refresh)
	outerMux.HandleFunc("GET /api/houses/lookup", s.houseH.Lookup)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.jwtSecret, s.sessionStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/signout", s.authH.SignOut)
	mux.HandleFunc("GET /api/session", s.authH.Session)

	// Profile routes
	mux.HandleFunc("GET /api/profile", s.profileH.Get)
	mux.HandleFunc("PUT /api/profile", s.profileH.Update)
	mux.HandleFunc("DELETE /api/profile", s.profileH.Delete)
	mux.HandleFunc("PUT /api/profile/verification", s.profileH.UpdateVerification)

	// House routes
	mux.HandleFunc("GET /api/house", s.houseH.Get)
	mux.HandleFunc("PUT /api/house", s.houseH.Update)
	mux.HandleFunc("GET /api/house/members", s.houseH.Members)
	mux.HandleFunc("POST /api/house/leave", s.houseH.Leave)

	// Feed routes
	mux.HandleFunc("GET /api/posts", s.postH.List)
	mux.HandleFunc("POST /api/posts", s.postH.Create)
	mux.HandleFunc("GET /api/posts/{id}/comments", s.postH.ListComments)
	mux.HandleFunc("POST /api/posts/{id}/comments", s.postH.AddComment)
	mux.HandleFunc("POST /api/posts/{id}/like", s.postH.Like)
	mux.HandleFunc("DELETE /api/posts/{id}/like", s.postH.Unlike)
	mux.HandleFunc("POST /api/posts/{id}/repost", s.postH.Repost)
	mux.HandleFunc("DELETE /api/posts/{id}/repost", s.postH.Unrepost)

	// Real-time event stream
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
}
