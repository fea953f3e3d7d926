package userclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/geocoder89/requesthub/internal/clients"
	"github.com/geocoder89/requesthub/internal/domain/user"
	"github.com/geocoder89/requesthub/internal/observability"
)

// Client is the User Existence Port. We only ever ask whether a user exists.
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
		return c.prom.ObserveClient("user", op, fn)
	}
	return fn()
}

// UserExists checks the user service. Missing user is user.ErrNotFound,
// anything transport-level is user.ErrUnavailable.
func (c *Client) UserExists(ctx context.Context, userID string) error {
	call := func(cctx context.Context) error {
		return c.observe("user_exists", func() error {
			url := c.baseURL + "/admin/users/" + userID

			req, err := http.NewRequestWithContext(cctx, http.MethodGet, url, nil)
			if err != nil {
				return fmt.Errorf("%w: %v", user.ErrUnavailable, err)
			}

			resp, err := c.http.Do(req)
			if err != nil {
				return fmt.Errorf("%w: %v", user.ErrUnavailable, err)
			}

			defer resp.Body.Close()

			// body is irrelevant, drain it so the connection can be reused
			_, _ = io.Copy(io.Discard, resp.Body)

			switch {
			case resp.StatusCode == http.StatusNotFound:
				return user.ErrNotFound
			case resp.StatusCode >= 500:
				return fmt.Errorf("%w: status %d", user.ErrUnavailable, resp.StatusCode)
			case resp.StatusCode != http.StatusOK:
				return fmt.Errorf("%w: unexpected status %d", user.ErrUnavailable, resp.StatusCode)
			}

			return nil
		})
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Do(ctx, call, isTransportFailure)
		if errors.Is(err, clients.ErrCircuitOpen) {
			err = fmt.Errorf("%w: %v", user.ErrUnavailable, err)
		}
	} else {
		err = call(ctx)
	}

	return err
}

func isTransportFailure(err error) bool {
	return !errors.Is(err, user.ErrNotFound)
}
