package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"messenger/internal/cache"
	"messenger/internal/config"
	"messenger/internal/security"
	"messenger/internal/service"
	"messenger/internal/store"
	"messenger/internal/ws"
)

// NewRouter constructs the main HTTP router and wires routes, services, and middleware.
func NewRouter(
	cfg *config.Config,
	st *store.Store,
	hub *ws.Hub,
	tokenSvc *security.TokenService,
	passwordHasher *security.PasswordHasher,
	encryptor *security.Encryptor,
	profiles cache.ProfileCache,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Services
	authSvc := service.NewAuthService(st.Users, tokenSvc, passwordHasher)
	userSvc := service.NewUserService(st.Users, profiles)
	chatSvc := service.NewChatService(st.Chats, st.Participants, st.Users, encryptor)
	msgSvc := service.NewMessageService(st.Messages, st.Participants, encryptor)
	push := &notifier{hub: hub, chats: chatSvc}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": cfg.AppName, "version": "1.0.0"})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := st.DB.PingContext(r.Context()); err != nil {
			loggerFrom(r).Warn("health: database unreachable", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// long-lived websocket connections stay outside the timeout
		r.Use(middleware.Timeout(60 * time.Second))

		// Auth routes (no auth required)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handleRegister(authSvc))
			r.Post("/login", handleLogin(authSvc))
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(tokenSvc, st.Users))

			r.Get("/auth/me", handleMe())

			r.Route("/profile", func(r chi.Router) {
				r.Get("/", handleGetProfile(userSvc, hub))
				r.Delete("/", handleDeleteAccount(userSvc, hub))
				r.Put("/nickname", handleUpdateNickname(userSvc, hub))
				r.Put("/avatar", handleUpdateAvatar(userSvc, hub))
				r.Put("/theme", handleUpdateTheme(userSvc, hub))
				r.Put("/visibility", handleUpdateVisibility(userSvc, hub))
			})

			r.Get("/users/{userID}", handleGetUser(userSvc, hub))

			r.Route("/chats", func(r chi.Router) {
				r.Get("/", handleListChats(chatSvc))
				r.Post("/personal", handleCreatePersonalChat(chatSvc, push))
				r.Post("/groups", handleCreateGroupChat(chatSvc, push))
				r.Route("/{chatID}", func(r chi.Router) {
					r.Put("/", handleUpdateGroupInfo(chatSvc, push))
					r.Get("/participants", handleListParticipants(chatSvc))
					r.Post("/leave", handleLeaveChat(chatSvc, push))
					r.Delete("/members/{memberID}", handleRemoveMember(chatSvc, push))
					r.Get("/messages", handleListMessages(msgSvc))
					r.Post("/messages", handleSendMessage(msgSvc, push))
				})
			})

			r.Route("/messages/{messageID}", func(r chi.Router) {
				r.Put("/", handleEditMessage(msgSvc, push))
				r.Delete("/", handleDeleteMessage(msgSvc, push))
				r.Post("/read", handleMarkRead(msgSvc, push))
			})
		})
	})

	// WebSocket endpoint
	r.Get("/ws", ws.MakeHandler(hub, tokenSvc, st.Users, cfg.CORSOrigins, logger))

	return r
}
