package relay

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fernweh-site/fernweh/internal/model"
)

// Pool fans a query out to every configured relay concurrently and
// concatenates the results. The logs are replicated, so duplicates across
// relays are expected; deduplication happens downstream in the feed layer.
// There is no relay scoring or failover policy here.
type Pool struct {
	clients []*Client
	log     *logrus.Logger
}

// NewPool creates a pool over the given relay URLs.
func NewPool(urls []string, timeout time.Duration, log *logrus.Logger) *Pool {
	clients := make([]*Client, 0, len(urls))
	for _, u := range urls {
		clients = append(clients, NewClient(u, timeout, log))
	}
	return &Pool{clients: clients, log: log}
}

// Query runs the filters against all relays. A failing relay contributes
// nothing; the query only errors when every relay failed, so callers can
// distinguish "quiet network" from "no transport at all".
func (p *Pool) Query(ctx context.Context, filters ...Filter) ([]model.Event, error) {
	if len(p.clients) == 0 {
		return nil, nil
	}
	if len(p.clients) == 1 {
		return p.clients[0].Query(ctx, filters...)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		merged   []model.Event
		failures int
		firstErr error
	)
	for _, client := range p.clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			events, err := c.Query(ctx, filters...)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				if firstErr == nil {
					firstErr = err
				}
				p.log.WithError(err).WithField("relay", c.URL()).Warn("Relay query failed")
				return
			}
			merged = append(merged, events...)
		}(client)
	}
	wg.Wait()

	if failures == len(p.clients) {
		return nil, firstErr
	}
	return merged, nil
}
