// Package remote implements the client task store over the todo HTTP API and
// its server-sent event stream.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/yush1006/todo/api"
	"github.com/yush1006/todo/domain"
)

const maxErrorBody = 64 << 10

// Error is a non-2xx response. It unwraps to the sentinel for its code, so
// errors.Is(err, domain.ErrTaskNotFound) works across the wire.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return e.Code + ": " + e.Message
	}
	if e.Message != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Code)
}

func (e *Error) Unwrap() error { return api.ErrorForCode(e.Code) }

// Option configures a Store.
type Option func(*Store)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) { s.http = c }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store talks to one todo-api deployment.
type Store struct {
	baseURL string
	apiKey  string
	token   func() string
	http    *http.Client
	logger  *log.Logger
}

// New returns a Store for baseURL. token is called before every request and
// returns the bearer token of the current session.
func New(baseURL, apiKey string, token func() string, opts ...Option) *Store {
	s := &Store{
		baseURL: baseURL,
		apiKey:  apiKey,
		token:   token,
		http:    http.DefaultClient,
		logger:  log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type createResponse struct {
	ID string `json:"id"`
}

func (s *Store) Create(ctx context.Context, task domain.NewTask) (string, error) {
	var out createResponse
	if err := s.do(ctx, http.MethodPost, "/api/tasks", task, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Update patches one task. ownerID is implied by the session token.
func (s *Store) Update(ctx context.Context, _, id string, patch domain.TaskPatch) error {
	return s.do(ctx, http.MethodPatch, "/api/tasks/"+url.PathEscape(id), patch, nil)
}

func (s *Store) Delete(ctx context.Context, _, id string) error {
	return s.do(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil)
}

func (s *Store) BatchUpdate(ctx context.Context, _ string, updates []domain.TaskUpdate) error {
	return s.do(ctx, http.MethodPost, "/api/tasks/batch", updates, nil)
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

// Snapshot fetches the current list once.
func (s *Store) Snapshot(ctx context.Context) ([]domain.Task, error) {
	var out tasksResponse
	if err := s.do(ctx, http.MethodGet, "/api/tasks", nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

func (s *Store) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if s.apiKey != "" {
		req.Header.Set(api.HeaderAPIKey, s.apiKey)
	}
	if s.token != nil {
		if tok := s.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	return req, nil
}

func (s *Store) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := sonic.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := s.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return readError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func readError(resp *http.Response) error {
	e := &Error{Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err == nil && len(data) > 0 {
		var body api.ErrorResponse
		if sonic.Unmarshal(data, &body) == nil {
			e.Code, e.Message = body.Code, body.Message
		}
	}
	if e.Code == "" {
		e.Code = http.StatusText(resp.StatusCode)
	}
	return e
}

// IsStatus reports whether err is an Error with the given status.
func IsStatus(err error, status int) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == status
}
