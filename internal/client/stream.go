package client

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/starford/smartmarks/internal/feed"
	"github.com/starford/smartmarks/internal/livelist"
	"github.com/starford/smartmarks/internal/models"
)

const streamBuffer = 64

// Stream is an open SSE change feed.
type Stream struct {
	ch     chan models.Change
	cancel context.CancelFunc
	body   io.ReadCloser
	once   sync.Once
	done   chan struct{}
}

var _ livelist.Subscription = (*Stream)(nil)

// Subscribe opens GET /api/events. The returned subscription's channel
// closes when the server ends the stream, the connection drops, or Close is
// called.
func (c *Client) Subscribe(ctx context.Context) (livelist.Subscription, error) {
	return c.Events(ctx)
}

// Events is Subscribe with the concrete type.
func (c *Client) Events(ctx context.Context) (*Stream, error) {
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	req, err := c.newRequest(streamCtx, http.MethodGet, "/api/events", nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		cancel()
		return nil, readAPIError(resp)
	}

	s := &Stream{
		ch:     make(chan models.Change, streamBuffer),
		cancel: cancel,
		body:   resp.Body,
		done:   make(chan struct{}),
	}
	go s.read(streamCtx)
	return s, nil
}

// Changes implements livelist.Subscription.
func (s *Stream) Changes() <-chan models.Change { return s.ch }

// Close ends the stream. Safe to call more than once.
func (s *Stream) Close() error {
	s.once.Do(func() {
		s.cancel()
		_ = s.body.Close()
	})
	<-s.done
	return nil
}

// read parses SSE frames: "event:" and "data:" fields accumulate until a
// blank line dispatches them; lines starting with ':' are comments.
func (s *Stream) read(ctx context.Context) {
	defer close(s.done)
	defer close(s.ch)

	sc := bufio.NewScanner(s.body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var event string
	var data []string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				if !s.dispatch(ctx, event, strings.Join(data, "\n")) {
					return
				}
			}
			event, data = "", nil
		case strings.HasPrefix(line, ":"):
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
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		slog.Debug("event stream ended", slog.String("error", err.Error()))
	}
}

func (s *Stream) dispatch(ctx context.Context, event, data string) bool {
	if event == "" {
		event = "message"
	}
	c, err := feed.Decode(event, []byte(data))
	if err != nil {
		slog.Warn("dropping malformed event", slog.String("event", event), slog.String("error", err.Error()))
		return true
	}
	select {
	case s.ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
