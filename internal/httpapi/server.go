// Package httpapi is Maestro's read-only REST surface, the single inbound
// webhook, and the event-bus WebSocket (§4.H, §6), grounded on the
// teacher's routes.go group-by-concern registration and handlers.go
// echo.Context response shapes.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"maestro/internal/conversation"
	"maestro/internal/eventbus"
	"maestro/internal/knowledge"
	"maestro/internal/store"
)

// ConversationHandle is the slice of *conversation.Conversation this package
// needs: Send for the webhook and GetStats for the conversation stats route,
// wired as an interface rather than the concrete type.
type ConversationHandle interface {
	Send(ctx context.Context, userText string) (string, error)
	GetStats(ctx context.Context) (conversation.Stats, error)
}

// Server wires the store, knowledge base, event bus, and conversation
// handle into echo routes. One Server per running process.
type Server struct {
	store     *store.Store
	kb        *knowledge.Store
	bus       *eventbus.Bus
	conv      ConversationHandle
	thumbs    *knowledge.ThumbnailCache
	projectID string
	startedAt time.Time
	engine    func() string
	toolCount func() int

	webhookUser   string
	webhookSender string

	upgrader websocket.Upgrader
	log      *logrus.Entry
}

// Options bundles Server's dependencies.
type Options struct {
	Store         *store.Store
	Knowledge     *knowledge.Store
	Bus           *eventbus.Bus
	Conversation  ConversationHandle
	Thumbnails    *knowledge.ThumbnailCache
	ProjectID     string
	Engine        func() string
	ToolCount     func() int
	WebhookUser   string
	WebhookSender string
	Log           *logrus.Entry
}

// New builds a Server.
func New(opts Options) *Server {
	return &Server{
		store:         opts.Store,
		kb:            opts.Knowledge,
		bus:           opts.Bus,
		conv:          opts.Conversation,
		thumbs:        opts.Thumbnails,
		projectID:     opts.ProjectID,
		startedAt:     time.Now(),
		engine:        opts.Engine,
		toolCount:     opts.ToolCount,
		webhookUser:   opts.WebhookUser,
		webhookSender: opts.WebhookSender,
		upgrader:      websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		log:           opts.Log,
	}
}

// Register attaches every route to e, grouped by concern the way the
// teacher's registerAPIEndpoints/registerRoutes split theirs.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/health", s.handleHealth)
	e.POST("/webhook", s.handleWebhook)
	e.GET("/ws", s.handleWebSocket)

	api := e.Group("/api")
	api.GET("/project", s.handleProject)

	api.GET("/workspaces", s.handleListWorkspaces)
	api.GET("/workspaces/:slug", s.handleGetWorkspace)

	api.GET("/schedule", s.handleListSchedule)
	api.GET("/schedule/upcoming", s.handleUpcomingSchedule)
	api.GET("/schedule/:event_id", s.handleGetScheduleEvent)

	api.GET("/conversation", s.handleConversationState)
	api.GET("/conversation/messages", s.handleConversationMessages)

	api.GET("/knowledge/disciplines", s.handleDisciplines)
	api.GET("/knowledge/pages", s.handleListPages)
	api.GET("/knowledge/pages/:name", s.handleGetPage)
	api.GET("/knowledge/search", s.handleSearch)
	api.GET("/knowledge/page-thumb/:name", s.handlePageThumb)
}

func errJSON(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"error": message})
}
