package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/fernweh-site/fernweh/internal/model"
)

// DefaultQueryTimeout bounds a single query independently of any
// caller-supplied cancellation.
const DefaultQueryTimeout = 8 * time.Second

// Querier is the transport contract the rest of the application consumes.
// Implementations make no ordering guarantees; callers re-sort everything
// themselves.
type Querier interface {
	Query(ctx context.Context, filters ...Filter) ([]model.Event, error)
}

// Client queries a single relay over a websocket connection. Each query
// dials, sends one REQ, collects events until EOSE, the requested limit or
// the deadline, and hangs up. Repeated failures open a circuit breaker so a
// dead relay stops delaying every request.
type Client struct {
	url     string
	timeout time.Duration
	dialer  *websocket.Dialer
	breaker *gobreaker.CircuitBreaker
	log     *logrus.Entry
}

// NewClient creates a client for one relay URL.
func NewClient(url string, timeout time.Duration, log *logrus.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &Client{
		url:     url,
		timeout: timeout,
		dialer: &websocket.Dialer{
			HandshakeTimeout: timeout,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    url,
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// A caller hanging up mid-query says nothing about relay
			// health; only deadlines and transport errors count.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		}),
		log: log.WithField("relay", url),
	}
}

// URL returns the relay endpoint this client talks to.
func (c *Client) URL() string {
	return c.url
}

// Query sends the filters as one subscription and returns the raw events the
// relay delivered. A timeout or relay error returns no data; it is the
// caller's job to decide whether that degrades to an empty page.
func (c *Client) Query(ctx context.Context, filters ...Filter) ([]model.Event, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.query(ctx, filters)
	})
	if err != nil {
		return nil, err
	}
	return res.([]model.Event), nil
}

func (c *Client) query(ctx context.Context, filters []Filter) ([]model.Event, error) {
	// The fixed deadline and any caller-initiated abort are combined here;
	// whichever fires first cancels the in-flight query.
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s (status %d): %w", c.url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", c.url, err)
	}
	defer conn.Close()

	// Unblock reads when the caller aborts before the deadline.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	subID := uuid.NewString()
	req := make([]interface{}, 0, len(filters)+2)
	req = append(req, "REQ", subID)
	for _, f := range filters {
		req = append(req, f)
	}
	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("send subscription: %w", err)
	}

	limit := 0
	for _, f := range filters {
		limit += f.Limit
	}

	var events []model.Event
	for {
		var frame []json.RawMessage
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("query %s: %w", c.url, ctx.Err())
			}
			return nil, fmt.Errorf("read from %s: %w", c.url, err)
		}
		if len(frame) < 2 {
			continue
		}
		var kind string
		if err := json.Unmarshal(frame[0], &kind); err != nil {
			continue
		}
		switch kind {
		case "EVENT":
			if len(frame) < 3 {
				continue
			}
			var ev model.Event
			if err := json.Unmarshal(frame[2], &ev); err != nil {
				c.log.WithError(err).Debug("Dropping undecodable event")
				continue
			}
			events = append(events, ev)
			if limit > 0 && len(events) >= limit {
				c.closeSubscription(conn, subID)
				return events, nil
			}
		case "EOSE":
			c.closeSubscription(conn, subID)
			return events, nil
		case "CLOSED":
			return events, nil
		case "NOTICE":
			if len(frame) >= 2 {
				var msg string
				_ = json.Unmarshal(frame[1], &msg)
				c.log.WithField("notice", msg).Debug("Relay notice")
			}
		}
	}
}

func (c *Client) closeSubscription(conn *websocket.Conn, subID string) {
	_ = conn.WriteJSON([]interface{}{"CLOSE", subID})
}
