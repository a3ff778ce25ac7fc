package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
)

type Server struct {
	port      int
	publicURL string

	registry    *Registry
	connections *ConnectionManager
	sessions    *SessionIndex
	limiter     *RateLimiter
	archive     *Archive
}

func NewServer() (*Server, *http.Server) {
	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = 3000
	}

	publicURL := os.Getenv("PUBLIC_URL")
	if publicURL == "" {
		publicURL = fmt.Sprintf("http://localhost:%d", port)
	}

	newServer := &Server{
		port:        port,
		publicURL:   publicURL,
		registry:    NewRegistry(),
		connections: NewConnectionManager(),
		sessions:    NewSessionIndex(),
		limiter:     NewRateLimiter(20, time.Second),
	}

	// Match archiving is optional: the game runs entirely in memory and
	// only finished results are written out.
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		archive, err := NewArchive(context.Background(), databaseURL)
		if err != nil {
			zap.L().Warn("Match archive unavailable, continuing without it", zap.Error(err))
		} else {
			newServer.archive = archive
		}
	}

	go newServer.cleanupTask()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", newServer.port),
		Handler:      newServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return newServer, httpServer
}

// cleanupTask periodically reclaims abandoned rooms and stale limiter state.
func (s *Server) cleanupTask() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.limiter.Cleanup()
		if removed := s.registry.Sweep(time.Now()); removed > 0 {
			zap.L().Info("Swept abandoned rooms", zap.Int("count", removed))
		}
	}
}

func (s *Server) Shutdown(ctx context.Context) {
	s.connections.CloseAll("Server shutting down")
	if s.archive != nil {
		s.archive.Close()
	}
}
