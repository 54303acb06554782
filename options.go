package notify

// This file defines functional options that configure the Engine during
// construction. Keeping them in a standalone file makes it easy to
// discover all available knobs at a glance.

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/workloop/notify-go/internal/realtime"
)

// Option configures an Engine during construction in New.
//
// Options are applied before the authorization transport wrapper is
// installed, so transport-related options (like debug logging) will be
// placed underneath the API-key wrapper. Options must be deterministic and
// side-effect free.
type Option func(*Engine) error

// WithHTTPTimeout sets the underlying http.Client Timeout used by the SDK.
//
// Prefer per-request context deadlines where possible; this timeout is a
// coarse safety net that bounds the total time spent on a single HTTP
// request. The value must be greater than zero.
func WithHTTPTimeout(d time.Duration) Option {
	return func(e *Engine) error {
		if d <= 0 {
			return fmt.Errorf("http timeout must be > 0")
		}
		e.http.Timeout = d
		return nil
	}
}

// WithHTTPClient replaces the engine's HTTP client entirely. The API-key
// wrapper is still installed on top of whatever transport the client
// carries.
func WithHTTPClient(hc *http.Client) Option {
	return func(e *Engine) error {
		if hc == nil {
			return fmt.Errorf("http client cannot be nil")
		}
		e.http = hc
		return nil
	}
}

// WithDebugLogging wraps the engine's transport so each request/response
// is logged when enabled is true. Do not enable in production; dumps
// include headers and bodies.
func WithDebugLogging(enabled bool) Option {
	return func(e *Engine) error {
		if enabled {
			base := e.http.Transport
			if base == nil {
				base = http.DefaultTransport
			}
			e.http.Transport = &debugTransport{base: base}
		}
		return nil
	}
}

// WithLogger replaces the engine's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) error {
		e.log = l
		return nil
	}
}

// WithClock replaces the engine's time source. Intended for tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) error {
		if clock == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		e.clock = clock
		return nil
	}
}

// WithDialer replaces the push-channel dialer. Intended for tests and for
// transports other than the default WebSocket endpoint.
func WithDialer(d realtime.Dialer) Option {
	return func(e *Engine) error {
		if d == nil {
			return fmt.Errorf("dialer cannot be nil")
		}
		e.dialer = d
		return nil
	}
}

// WithPageSize sets how many records each refresh fetches.
func WithPageSize(n int) Option {
	return func(e *Engine) error {
		if n <= 0 {
			return fmt.Errorf("page size must be > 0")
		}
		e.cfg.PageSize = n
		return nil
	}
}

// WithHeartbeatInterval sets the cadence of subscription liveness probes.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(e *Engine) error {
		if d <= 0 {
			return fmt.Errorf("heartbeat interval must be > 0")
		}
		e.cfg.HeartbeatInterval = d
		return nil
	}
}

// WithReconnectDelays bounds the exponential reconnect schedule.
func WithReconnectDelays(base, max time.Duration) Option {
	return func(e *Engine) error {
		if base <= 0 || max < base {
			return fmt.Errorf("reconnect delays must satisfy 0 < base <= max")
		}
		e.cfg.ReconnectBaseDelay = base
		e.cfg.ReconnectMaxDelay = max
		return nil
	}
}

// WithActorProfileTTL bounds how long resolved actor profiles are reused.
func WithActorProfileTTL(d time.Duration) Option {
	return func(e *Engine) error {
		if d <= 0 {
			return fmt.Errorf("actor profile ttl must be > 0")
		}
		e.cfg.ActorProfileTTL = d
		return nil
	}
}

// WithRefreshTTL sets how long a fetched page satisfies non-forced
// refreshes.
func WithRefreshTTL(d time.Duration) Option {
	return func(e *Engine) error {
		if d < 0 {
			return fmt.Errorf("refresh ttl cannot be negative")
		}
		e.cfg.RefreshTTL = d
		return nil
	}
}
