package eventclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/geocoder89/requesthub/internal/clients"
	"github.com/geocoder89/requesthub/internal/domain/event"
	"github.com/geocoder89/requesthub/internal/observability"
)

// Client is the Event Lookup Port: a read-only view over the event service.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *clients.Breaker
	prom    *observability.Prom
}

func New(baseURL string, httpClient *http.Client, breaker *clients.Breaker, prom *observability.Prom) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		breaker: breaker,
		prom:    prom,
	}
}

func (c *Client) observe(op string, fn func() error) error {
	if c.prom != nil {
		return c.prom.ObserveClient("event", op, fn)
	}
	return fn()
}

// GetEvent fetches one event snapshot. 404 maps to event.ErrNotFound,
// transport failures to event.ErrUnavailable. The breaker only counts the
// latter.
func (c *Client) GetEvent(ctx context.Context, eventID string) (event.Snapshot, error) {
	var snap event.Snapshot

	call := func(cctx context.Context) error {
		return c.observe("get_event", func() error {
			url := c.baseURL + "/events/" + eventID

			req, err := http.NewRequestWithContext(cctx, http.MethodGet, url, nil)
			if err != nil {
				return fmt.Errorf("%w: %v", event.ErrUnavailable, err)
			}

			resp, err := c.http.Do(req)
			if err != nil {
				return fmt.Errorf("%w: %v", event.ErrUnavailable, err)
			}

			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusNotFound:
				return event.ErrNotFound
			case resp.StatusCode >= 500:
				return fmt.Errorf("%w: status %d", event.ErrUnavailable, resp.StatusCode)
			case resp.StatusCode != http.StatusOK:
				return fmt.Errorf("%w: unexpected status %d", event.ErrUnavailable, resp.StatusCode)
			}

			if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
				return fmt.Errorf("%w: decode: %v", event.ErrUnavailable, err)
			}

			return nil
		})
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Do(ctx, call, isTransportFailure)
		if errors.Is(err, clients.ErrCircuitOpen) {
			err = fmt.Errorf("%w: %v", event.ErrUnavailable, err)
		}
	} else {
		err = call(ctx)
	}

	if err != nil {
		return event.Snapshot{}, err
	}

	return snap, nil
}

func isTransportFailure(err error) bool {
	return !errors.Is(err, event.ErrNotFound)
}
