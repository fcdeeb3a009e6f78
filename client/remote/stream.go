package remote

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/yush1006/todo/api"
	"github.com/yush1006/todo/domain"
)

const maxEventSize = 8 << 20

// ErrStreamClosed is reported when the server ends the snapshot stream.
var ErrStreamClosed = errors.New("snapshot stream closed")

// Subscribe opens the snapshot stream of the signed-in user. The connection
// is established before Subscribe returns; snapshots and errors are then
// delivered from one goroutine in arrival order. The stream is not
// reconnected after it ends.
func (s *Store) Subscribe(ctx context.Context, ownerID string, onSnapshot func([]domain.Task), onError func(error)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := s.newRequest(ctx, http.MethodGet, "/stream", nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.http.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		cancel()
		return nil, readError(resp)
	}

	logger := s.logger.WithField("user", ownerID)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer resp.Body.Close()
		err := readEvents(resp.Body, func(event, data string) {
			dispatch(event, data, onSnapshot, onError)
		})
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = ErrStreamClosed
		}
		logger.WithError(err).Warn("snapshot stream ended")
		onError(err)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

func dispatch(event, data string, onSnapshot func([]domain.Task), onError func(error)) {
	switch event {
	case api.EventSnapshot:
		var tasks []domain.Task
		if err := sonic.UnmarshalString(data, &tasks); err != nil {
			onError(fmt.Errorf("decode snapshot: %w", err))
			return
		}
		onSnapshot(tasks)
	case api.EventError:
		var se api.StreamError
		if err := sonic.UnmarshalString(data, &se); err != nil || se.Code == "" {
			se.Code = api.CodeUnavailable
		}
		onError(&Error{Code: se.Code, Message: "snapshot read failed"})
	}
}

// readEvents parses a text/event-stream body and calls fn per event. It
// returns nil at EOF.
func readEvents(r io.Reader, fn func(event, data string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxEventSize)

	var event string
	var data []string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				if event == "" {
					event = "message"
				}
				fn(event, strings.Join(data, "\n"))
			}
			event, data = "", nil
		case strings.HasPrefix(line, ":"):
			// comment, e.g. keepalive
		default:
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "event":
				event = value
			case "data":
				data = append(data, value)
			}
		}
	}
	return sc.Err()
}
