package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"github.com/yush1006/todo/domain"
)

// SSE event names written on /stream.
const (
	EventSnapshot = "snapshot"
	EventError    = "error"
)

// StreamError is the payload of an error event.
type StreamError struct {
	Code string `json:"code"`
}

// eventWriter serialises writes to one SSE response.
type eventWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

func (ew *eventWriter) send(event string, payload any) error {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return err
	}
	ew.mu.Lock()
	defer ew.mu.Unlock()
	buf := make([]byte, 0, len(data)+len(event)+16)
	buf = append(buf, "event: "...)
	buf = append(buf, event...)
	buf = append(buf, "\ndata: "...)
	buf = append(buf, data...)
	buf = append(buf, "\n\n"...)
	if _, err := ew.w.Write(buf); err != nil {
		return err
	}
	ew.flusher.Flush()
	return nil
}

func (ew *eventWriter) comment(text string) error {
	ew.mu.Lock()
	defer ew.mu.Unlock()
	if _, err := ew.w.Write([]byte(":" + text + "\n\n")); err != nil {
		return err
	}
	ew.flusher.Flush()
	return nil
}

// stream pushes the caller's whole task list on connect and after every
// change. The token may be passed as ?token= since EventSource cannot set
// headers.
func (h *handlers) stream(c echo.Context) error {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if token := c.QueryParam("token"); authHeader == "" && token != "" {
		authHeader = "Bearer " + token
	}
	userID, err := h.auth.UserIDFromAuthHeader(authHeader)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Code: CodeUnauthorized, Message: err.Error()})
	}
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return c.String(http.StatusInternalServerError, "stream unsupported")
	}
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger := h.logger.WithField("user", userID)
	logger.Debug("stream opened")
	defer logger.Debug("stream closed")

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	ew := &eventWriter{w: res, flusher: flusher}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.store.Watch(ctx, userID,
			func(tasks []domain.Task) {
				if err := ew.send(EventSnapshot, tasks); err != nil {
					cancel()
				}
			},
			func(err error) {
				_, code := classify(err)
				logger.WithError(err).Warn("snapshot read failed")
				if werr := ew.send(EventError, StreamError{Code: code}); werr != nil {
					cancel()
				}
			})
	}()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			<-done
			return nil
		case <-h.closing:
			logger.Debug("server shutting down")
			cancel()
		case <-ticker.C:
			if err := ew.comment("keepalive"); err != nil {
				cancel()
			}
		}
	}
}
