package api

import (
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/yush1006/todo/domain"
)

const (
	maxBodySize      = 1 << 20
	defaultHeartbeat = 15 * time.Second
)

// Options tunes Register.
type Options struct {
	Logger    *log.Logger
	Heartbeat time.Duration
	APIKeys   []string
}

type handlers struct {
	store     TaskStore
	auth      Authenticator
	logger    *log.Logger
	heartbeat time.Duration

	// closing is closed when the HTTP server begins shutting down; open
	// streams end so Shutdown does not wait on them.
	closing   chan struct{}
	closeOnce sync.Once
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store TaskStore, auth Authenticator, opts Options) {
	h := &handlers{store: store, auth: auth, logger: opts.Logger, heartbeat: opts.Heartbeat, closing: make(chan struct{})}
	if h.logger == nil {
		h.logger = log.StandardLogger()
	}
	if h.heartbeat <= 0 {
		h.heartbeat = defaultHeartbeat
	}

	keys := APIKeyMiddleware(opts.APIKeys)
	g := e.Group("/api", keys)
	g.GET("/tasks", h.listTasks)
	g.POST("/tasks", h.createTask)
	g.POST("/tasks/batch", h.batchUpdate)
	g.PATCH("/tasks/:id", h.updateTask)
	g.DELETE("/tasks/:id", h.deleteTask)
	e.GET("/stream", h.stream, keys)
	e.GET("/healthz", healthz)
	e.Server.RegisterOnShutdown(h.closeStreams)
}

func (h *handlers) closeStreams() {
	h.closeOnce.Do(func() { close(h.closing) })
}

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// begin starts metrics for the request and authenticates the caller. ok is
// false when the response has already been written.
func (h *handlers) begin(c echo.Context, route string) (m *requestMetrics, userID string, ok bool) {
	m, ctx := newRequestMetrics(c.Request().Context(), h.logger, route)
	c.SetRequest(c.Request().WithContext(ctx))

	authStart := time.Now()
	userID, err := h.auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	m.ObserveAuth(time.Since(authStart))
	if err != nil {
		m.Fail("auth", err)
		_ = c.JSON(http.StatusUnauthorized, ErrorResponse{Code: CodeUnauthorized, Message: err.Error()})
		return m, "", false
	}
	return m, userID, true
}

func (h *handlers) fail(c echo.Context, m *requestMetrics, stage string, err error) error {
	status, code := classify(err)
	m.Fail(stage, err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithField("route", m.route).Error("task store failure")
		msg = ""
	}
	return c.JSON(status, ErrorResponse{Code: code, Message: msg})
}

func (h *handlers) listTasks(c echo.Context) error {
	m, userID, ok := h.begin(c, "/api/tasks")
	defer func() { m.Log(c.Response().Status) }()
	if !ok {
		return nil
	}
	start := time.Now()
	tasks, err := h.store.Snapshot(c.Request().Context(), userID)
	m.ObserveStore(time.Since(start))
	if err != nil {
		return h.fail(c, m, "storage", err)
	}
	m.SetTasks(len(tasks))
	return c.JSON(http.StatusOK, tasksResponse{Tasks: tasks})
}

func (h *handlers) createTask(c echo.Context) error {
	m, userID, ok := h.begin(c, "/api/tasks")
	defer func() { m.Log(c.Response().Status) }()
	if !ok {
		return nil
	}
	var req createTaskRequest
	if err := decodeBody(c, &req); err != nil {
		m.Fail("decode", err)
		return c.JSON(http.StatusBadRequest, ErrorResponse{Code: CodeInvalidBody, Message: "invalid body"})
	}
	if req.OwnerID != "" && req.OwnerID != userID {
		m.Fail("owner", errors.New("owner mismatch"))
		return c.JSON(http.StatusForbidden, ErrorResponse{Code: CodeForbidden, Message: "ownerId does not match the signed-in user"})
	}
	start := time.Now()
	task, err := h.store.Create(c.Request().Context(), domain.NewTask{OwnerID: userID, Text: req.Text, Order: req.Order})
	m.ObserveStore(time.Since(start))
	if err != nil {
		return h.fail(c, m, "storage", err)
	}
	return c.JSON(http.StatusCreated, createTaskResponse{ID: task.ID})
}

func (h *handlers) updateTask(c echo.Context) error {
	m, userID, ok := h.begin(c, "/api/tasks/:id")
	defer func() { m.Log(c.Response().Status) }()
	if !ok {
		return nil
	}
	var patch domain.TaskPatch
	if err := decodeBody(c, &patch); err != nil {
		m.Fail("decode", err)
		return c.JSON(http.StatusBadRequest, ErrorResponse{Code: CodeInvalidBody, Message: "invalid body"})
	}
	start := time.Now()
	task, err := h.store.Update(c.Request().Context(), userID, c.Param("id"), patch)
	m.ObserveStore(time.Since(start))
	if err != nil {
		return h.fail(c, m, "storage", err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *handlers) deleteTask(c echo.Context) error {
	m, userID, ok := h.begin(c, "/api/tasks/:id")
	defer func() { m.Log(c.Response().Status) }()
	if !ok {
		return nil
	}
	start := time.Now()
	err := h.store.Delete(c.Request().Context(), userID, c.Param("id"))
	m.ObserveStore(time.Since(start))
	if err != nil {
		return h.fail(c, m, "storage", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) batchUpdate(c echo.Context) error {
	m, userID, ok := h.begin(c, "/api/tasks/batch")
	defer func() { m.Log(c.Response().Status) }()
	if !ok {
		return nil
	}
	updates := make([]domain.TaskUpdate, 0, 16)
	if err := decodeBody(c, &updates); err != nil {
		m.Fail("decode", err)
		return c.JSON(http.StatusBadRequest, ErrorResponse{Code: CodeInvalidBody, Message: "invalid body"})
	}
	if len(updates) > domain.MaxBatchSize {
		return h.fail(c, m, "validate", domain.ErrBatchTooLarge)
	}
	start := time.Now()
	err := h.store.BatchUpdate(c.Request().Context(), userID, updates)
	m.ObserveStore(time.Since(start))
	if err != nil {
		return h.fail(c, m, "storage", err)
	}
	m.SetTasks(len(updates))
	return c.NoContent(http.StatusNoContent)
}

func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, maxBodySize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
