package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned without calling out while an upstream's breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Kind classifies an upstream for health reporting.
type Kind string

// Upstream kinds.
const (
	KindDataSource  Kind = "data_source"
	KindModelServer Kind = "model_server"
)

// ClientConfig holds configuration for an upstream HTTP client.
type ClientConfig struct {
	// Name identifies the upstream in the registry and in logs.
	Name string

	Kind Kind

	// Timeout bounds each attempt (default: 10 seconds).
	Timeout time.Duration

	// Retries is the number of extra attempts after a 5xx or network error.
	// Zero means a single attempt.
	Retries uint64

	// RetryBackoff is the first wait between attempts (default: 100ms).
	// Later waits grow exponentially up to maxRetryBackoff.
	RetryBackoff time.Duration

	Breaker BreakerConfig

	// Registry, when set, receives the client and every call outcome.
	Registry *Registry

	// Logger receives breaker state changes.
	Logger zerolog.Logger
}

const maxRetryBackoff = 2 * time.Second

// DataSourceConfig is the configuration for an observation source. Sources are
// called once; a failure is answered with mock data instead of a retry.
func DataSourceConfig(name string, timeout time.Duration) ClientConfig {
	return ClientConfig{Name: name, Kind: KindDataSource, Timeout: timeout}
}

// ModelServerConfig is the configuration for a remote model backend. One retry
// absorbs a restarting model server; after that the adapter falls back.
func ModelServerConfig(name string, timeout time.Duration) ClientConfig {
	return ClientConfig{Name: name, Kind: KindModelServer, Timeout: timeout, Retries: 1}
}

// Client is an HTTP client guarded by a circuit breaker.
type Client struct {
	name     string
	kind     Kind
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[*http.Response]
	retries  uint64
	backoff  time.Duration
	registry *Registry
}

// NewClient creates a new upstream client and registers it when cfg.Registry is set.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}

	logger := cfg.Logger
	onChange := func(name string, from, to gobreaker.State) {
		event := logger.Info()
		if to == gobreaker.StateOpen {
			event = logger.Warn()
		}
		event.
			Str("upstream", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("circuit breaker state changed")
	}

	c := &Client{
		name:     cfg.Name,
		kind:     cfg.Kind,
		http:     &http.Client{Timeout: cfg.Timeout},
		breaker:  newBreaker[*http.Response](cfg.Name, cfg.Breaker, onChange), //nolint:bodyclose // type param, not response
		retries:  cfg.Retries,
		backoff:  cfg.RetryBackoff,
		registry: cfg.Registry,
	}

	if c.registry != nil {
		c.registry.add(c)
	}
	return c
}

// Name returns the upstream name.
func (c *Client) Name() string {
	return c.name
}

// Kind returns the upstream kind.
func (c *Client) Kind() Kind {
	return c.kind
}

// State returns the breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Counts returns the breaker counts for the current window.
func (c *Client) Counts() gobreaker.Counts {
	return c.breaker.Counts()
}

// Do sends req through the breaker. 5xx responses and network errors count as
// failures and are retried up to the configured limit; a 5xx that survives every
// attempt is returned as a response for the caller to inspect. 4xx responses are
// returned as they are.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var last *http.Response
	attempt := func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // closed below or by the caller
			r, err := c.http.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= http.StatusInternalServerError {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrCircuitOpen)
		}
		if resp != nil {
			if last != nil {
				last.Body.Close()
			}
			last = resp
		}
		return err
	}

	err := backoff.Retry(attempt, c.policy(ctx))
	c.record(err)

	var serverErr *ServerError
	switch {
	case err == nil:
		return last, nil
	case last != nil && errors.As(err, &serverErr):
		return last, nil
	default:
		if last != nil {
			last.Body.Close()
		}
		return nil, err
	}
}

func (c *Client) policy(ctx context.Context) backoff.BackOffContext {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.backoff
	bo.MaxInterval = maxRetryBackoff
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, c.retries), ctx)
}

func (c *Client) record(err error) {
	if c.registry == nil {
		return
	}
	if err == nil {
		c.registry.recordSuccess(c.name)
		return
	}
	c.registry.recordFailure(c.name, err)
}

// ServerError is a 5xx answer from an upstream.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "upstream error: " + http.StatusText(e.StatusCode)
}
