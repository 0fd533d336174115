package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shubham-manmohan/voicenote/internal/auth"
	"github.com/shubham-manmohan/voicenote/internal/storage"
	"go.uber.org/zap"
)

type Server struct {
	storage storage.Storage
	tokens  *auth.TokenService
	logger  *zap.Logger
}

func NewServer(store storage.Storage, tokens *auth.TokenService, logger *zap.Logger) *Server {
	return &Server{
		storage: store,
		tokens:  tokens,
		logger:  logger,
	}
}

// Router wires every endpoint. Everything except health, register and login
// sits behind the bearer-token middleware.
func (s *Server) Router(allowedOrigins string) http.Handler {
	r := chi.NewRouter()

	r.Use(s.recoverPanic)
	r.Use(s.requestLogger)
	r.Use(corsMiddleware(allowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/profile", s.handleProfile)

		r.Route("/api", func(r chi.Router) {
			r.Post("/notes", s.handleCreateNote)
			r.Get("/notes", s.handleListNotes)
			r.Get("/notes/paginated", s.handleListNotesPaginated)
			r.Get("/notes/{id}", s.handleGetNote)
			r.Put("/notes/{id}", s.handleUpdateNote)
			r.Delete("/notes/{id}", s.handleDeleteNote)
			r.Post("/notes/{id}/bubbles", s.handleAddBubble)
			r.Put("/bubbles/{id}", s.handleUpdateBubble)
			r.Delete("/bubbles/{id}", s.handleDeleteBubble)
		})
	})

	return r
}
