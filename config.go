package notify

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the engine's tunables. Every field can be overridden
// through WORKLOOP_NOTIFY_* environment variables or the corresponding
// functional option.
type Config struct {
	// PageSize is the number of records fetched per refresh.
	PageSize int `envconfig:"PAGE_SIZE" default:"20"`

	// RefreshTTL is how long a fetched page satisfies non-forced refreshes.
	RefreshTTL time.Duration `envconfig:"REFRESH_TTL" default:"30s"`

	// HeartbeatInterval is the cadence of subscription liveness probes
	// while the page is visible.
	HeartbeatInterval time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"60s"`

	// ActorProfileTTL bounds how long a resolved actor profile is reused.
	ActorProfileTTL time.Duration `envconfig:"ACTOR_PROFILE_TTL" default:"5m"`

	// ReconnectBaseDelay and ReconnectMaxDelay bound the exponential
	// reconnect schedule.
	ReconnectBaseDelay time.Duration `envconfig:"RECONNECT_BASE_DELAY" default:"2s"`
	ReconnectMaxDelay  time.Duration `envconfig:"RECONNECT_MAX_DELAY" default:"30s"`

	// RespondRefreshDelay is how long after a friend-request response the
	// forced refresh fires to reconcile the optimistic removal.
	RespondRefreshDelay time.Duration `envconfig:"RESPOND_REFRESH_DELAY" default:"1500ms"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("WORKLOOP_NOTIFY", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
