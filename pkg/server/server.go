// Package server exposes the assistant over HTTP and WebSocket using Fiber.
package server

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/entrhq/aide/pkg/agent"
	"github.com/entrhq/aide/pkg/assistant/tools"
	"github.com/entrhq/aide/pkg/config"
	"github.com/entrhq/aide/pkg/logging"
	"github.com/entrhq/aide/pkg/memory"
	"github.com/entrhq/aide/pkg/session"
)

// Server wires the HTTP surface over the runner, session manager, and
// memory facade.
type Server struct {
	app      *fiber.App
	cfg      *config.Config
	runner   *agent.Runner
	sessions *session.Manager
	facade   *memory.Facade
	chain    []tools.UserResolver
	log      *logging.Logger
}

// New creates the server and registers its routes.
func New(cfg *config.Config, runner *agent.Runner, sessions *session.Manager, facade *memory.Facade) *Server {
	log, _ := logging.NewLogger("server")
	app := fiber.New(fiber.Config{
		AppName:   "aide",
		BodyLimit: cfg.Server.BodyLimitMB * 1024 * 1024,
	})

	s := &Server{
		app:      app,
		cfg:      cfg,
		runner:   runner,
		sessions: sessions,
		facade:   facade,
		chain:    tools.NewResolverChain(cfg.Session.OwnerUserID),
		log:      log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/health", s.handleHealth)
	s.app.Post("/session/new", s.handleNewSession)
	s.app.Get("/sessions", s.handleListSessions)
	s.app.Post("/reset", s.handleReset)
	s.app.Get("/todos", s.handleTodos)
	s.app.Post("/upload", s.handleUpload)
	s.app.Get("/files", s.handleFiles)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws/chat", websocket.New(s.handleChat))
}

// Listen starts serving on the configured address.
func (s *Server) Listen() error {
	s.log.Infof("listening on %s", s.cfg.Server.Addr)
	return s.app.Listen(s.cfg.Server.Addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the underlying Fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"sessions": s.sessions.Len(),
	})
}

func (s *Server) handleNewSession(c *fiber.Ctx) error {
	sess, err := s.sessions.Create(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{
		"session_id": sess.ID,
		"workspace":  sess.Workspace.Kind,
	})
}

func (s *Server) handleListSessions(c *fiber.Ctx) error {
	type sessionInfo struct {
		ID         string `json:"id"`
		Workspace  string `json:"workspace"`
		LastActive string `json:"last_active"`
		Paused     bool   `json:"paused"`
	}
	out := []sessionInfo{}
	for _, sess := range s.sessions.List() {
		out = append(out, sessionInfo{
			ID:         sess.ID,
			Workspace:  sess.Workspace.Kind,
			LastActive: sess.LastActive().Format("2006-01-02 15:04:05"),
			Paused:     sess.HasSnapshot(),
		})
	}
	return c.JSON(fiber.Map{"sessions": out})
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	var body struct {
		SessionID string `json:"session_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.SessionID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "session_id is required")
	}
	if err := s.sessions.Reset(c.Context(), body.SessionID); err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return c.JSON(fiber.Map{"reset": body.SessionID})
}

func (s *Server) handleTodos(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		userID = s.cfg.Session.OwnerUserID
	}
	if userID == "" {
		userID = tools.DefaultUserID
	}
	doc, err := s.facade.Read(userID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(doc.Todos)
}

func (s *Server) handleUpload(c *fiber.Ctx) error {
	sessionID := c.FormValue("session_id")
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("unknown session %q", sessionID))
	}
	if sess.Workspace.Kind != session.KindFilesystem {
		return fiber.NewError(fiber.StatusConflict, "uploads require a filesystem workspace")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}
	guard, err := session.NewGuard(sess.Workspace.Root)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	name := filepath.Base(file.Filename)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid file name")
	}
	dest, err := guard.ValidatePath(name)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid file name")
	}
	if err := c.SaveFile(file, dest); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	sess.Touch()
	return c.JSON(fiber.Map{"saved": name})
}

func (s *Server) handleFiles(c *fiber.Ctx) error {
	sessionID := c.Query("session_id")
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("unknown session %q", sessionID))
	}
	if sess.Workspace.Kind != session.KindFilesystem {
		return fiber.NewError(fiber.StatusConflict, "file listing requires a filesystem workspace")
	}

	entries, err := os.ReadDir(sess.Workspace.Root)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	names := []string{}
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return c.JSON(fiber.Map{"files": names})
}
