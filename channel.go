package notify

import (
	"context"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/workloop/notify-go/internal/realtime"
)

// Phase is the push-channel connection state.
type Phase string

const (
	PhaseDisconnected       Phase = "disconnected"
	PhaseConnecting         Phase = "connecting"
	PhaseSubscribed         Phase = "subscribed"
	PhaseReconnectScheduled Phase = "reconnect_scheduled"
)

const pingTimeout = 10 * time.Second

// ChannelManager owns one push subscription per signed-in user, the
// heartbeat timer, and the reconnect state machine:
//
//	DISCONNECTED → CONNECTING → SUBSCRIBED → {error, timeout, close}
//	  → RECONNECT_SCHEDULED → CONNECTING → ...
//
// A failure while offline stays DISCONNECTED until connectivity returns;
// regaining connectivity resets the attempt counter and reconnects
// immediately. Every timer is tracked by handle and cancelled on any
// transition that supersedes it, so repeated initialization never
// accumulates duplicate timers.
type ChannelManager struct {
	log    zerolog.Logger
	dialer realtime.Dialer
	store  *Store

	heartbeatEvery time.Duration
	baseDelay      time.Duration
	maxDelay       time.Duration

	// onResubscribed runs after a dropped subscription is re-established,
	// outside the manager lock. The engine uses it to force a full refresh
	// covering whatever the channel missed.
	onResubscribed func()

	mu             sync.Mutex
	userID         string
	phase          Phase
	attempts       int
	visible        bool
	online         bool
	epoch          uint64
	everSubscribed bool
	delays         *backoff.ExponentialBackOff
	conn           realtime.Conn
	cancelRead     context.CancelFunc
	heartbeatTimer *time.Timer
	reconnectTimer *time.Timer
}

func newChannelManager(dialer realtime.Dialer, store *Store, cfg Config, log zerolog.Logger) *ChannelManager {
	m := &ChannelManager{
		log:            log.With().Str("component", "channel").Logger(),
		dialer:         dialer,
		store:          store,
		heartbeatEvery: cfg.HeartbeatInterval,
		baseDelay:      cfg.ReconnectBaseDelay,
		maxDelay:       cfg.ReconnectMaxDelay,
		phase:          PhaseDisconnected,
		visible:        true,
		online:         true,
	}
	m.delays = m.newDelays()
	return m
}

// newDelays builds the reconnect schedule min(base * 2^k, max). The zero
// randomization keeps delays deterministic.
func (m *ChannelManager) newDelays() *backoff.ExponentialBackOff {
	d := backoff.NewExponentialBackOff()
	d.InitialInterval = m.baseDelay
	d.Multiplier = 2
	d.RandomizationFactor = 0
	d.MaxInterval = m.maxDelay
	d.MaxElapsedTime = 0
	d.Reset()
	return d
}

// Connect opens (or re-opens) the subscription for userID. Any previous
// subscription for a different user is torn down first.
func (m *ChannelManager) Connect(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if userID == "" {
		m.teardownLocked()
		return
	}
	if m.userID == userID && (m.phase == PhaseSubscribed || m.phase == PhaseConnecting) {
		return
	}
	if m.userID != userID {
		m.teardownLocked()
	}
	m.userID = userID
	m.connectLocked()
}

// Disconnect closes the subscription and cancels every timer. Terminal
// until the next Connect.
func (m *ChannelManager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
}

func (m *ChannelManager) teardownLocked() {
	m.epoch++
	m.stopTimersLocked()
	if m.cancelRead != nil {
		m.cancelRead()
		m.cancelRead = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.userID = ""
	m.phase = PhaseDisconnected
	m.attempts = 0
	m.everSubscribed = false
	m.delays = m.newDelays()
}

func (m *ChannelManager) stopTimersLocked() {
	if m.heartbeatTimer != nil {
		m.heartbeatTimer.Stop()
		m.heartbeatTimer = nil
	}
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

// connectLocked starts one dial attempt. The dial runs off the lock; its
// result is applied only if the epoch still matches.
func (m *ChannelManager) connectLocked() {
	m.epoch++
	epoch := m.epoch
	userID := m.userID
	m.phase = PhaseConnecting
	m.stopTimersLocked()
	if m.cancelRead != nil {
		m.cancelRead()
		m.cancelRead = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}

	go func() {
		conn, err := m.dialer.Dial(context.Background(), userID)
		m.onDialResult(epoch, conn, err)
	}()
}

func (m *ChannelManager) onDialResult(epoch uint64, conn realtime.Conn, err error) {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		m.log.Warn().Err(err).Int("attempts", m.attempts).Msg("subscription open failed")
		m.connectionLostLocked()
		m.mu.Unlock()
		return
	}

	m.conn = conn
	m.phase = PhaseSubscribed
	m.attempts = 0
	m.delays = m.newDelays()
	wasReconnect := m.everSubscribed
	m.everSubscribed = true
	if wasReconnect {
		reconnectsTotal.Inc()
	}

	readCtx, cancel := context.WithCancel(context.Background())
	m.cancelRead = cancel
	go m.readLoop(readCtx, epoch, conn)

	m.scheduleHeartbeatLocked(epoch, 0)
	resub := m.onResubscribed
	m.mu.Unlock()

	m.log.Info().Bool("reconnect", wasReconnect).Msg("subscribed")
	if wasReconnect && resub != nil {
		resub()
	}
}

// readLoop delivers push events into the store until the connection fails
// or is superseded.
func (m *ChannelManager) readLoop(ctx context.Context, epoch uint64, conn realtime.Conn) {
	for {
		event, err := conn.ReadEvent(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return // superseded, not a channel failure
			}
			m.mu.Lock()
			if m.epoch == epoch {
				m.log.Warn().Err(err).Msg("subscription dropped")
				m.connectionLostLocked()
			}
			m.mu.Unlock()
			return
		}
		m.store.ApplyEvent(ctx, event)
	}
}

// connectionLostLocked handles error/timeout/close uniformly: while the
// device is online a reconnect is scheduled; while offline the manager
// stays DISCONNECTED until connectivity returns.
func (m *ChannelManager) connectionLostLocked() {
	m.stopTimersLocked()
	if m.cancelRead != nil {
		m.cancelRead()
		m.cancelRead = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	if !m.online {
		m.phase = PhaseDisconnected
		return
	}
	m.scheduleReconnectLocked()
}

func (m *ChannelManager) scheduleReconnectLocked() {
	delay := m.nextDelayLocked()
	m.phase = PhaseReconnectScheduled
	epoch := m.epoch
	m.log.Info().Dur("delay", delay).Int("attempts", m.attempts).Msg("reconnect scheduled")
	m.reconnectTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.epoch != epoch || m.phase != PhaseReconnectScheduled {
			return
		}
		m.attempts++
		m.connectLocked()
	})
}

func (m *ChannelManager) nextDelayLocked() time.Duration {
	d := m.delays.NextBackOff()
	if d == backoff.Stop || d > m.maxDelay {
		d = m.maxDelay
	}
	return d
}

// SetOnline feeds the device connectivity signal. Regaining connectivity
// while disconnected or waiting on a reconnect timer cancels the timer,
// resets the attempt counter, and reconnects immediately.
func (m *ChannelManager) SetOnline(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	was := m.online
	m.online = online
	if !online || was == online {
		return
	}
	if m.userID == "" {
		return
	}
	if m.phase == PhaseDisconnected || m.phase == PhaseReconnectScheduled {
		m.attempts = 0
		m.delays = m.newDelays()
		m.connectLocked()
	}
}

// SetVisible feeds the page visibility signal. Heartbeats never fire while
// hidden; the first heartbeat after becoming visible fires immediately
// rather than waiting for the next tick.
func (m *ChannelManager) SetVisible(visible bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	was := m.visible
	m.visible = visible
	if !visible {
		if m.heartbeatTimer != nil {
			m.heartbeatTimer.Stop()
			m.heartbeatTimer = nil
		}
		return
	}
	if !was && m.phase == PhaseSubscribed {
		m.scheduleHeartbeatLocked(m.epoch, -1)
	}
}

// scheduleHeartbeatLocked arms the next heartbeat after delay (0 means the
// regular interval; a negative delay fires immediately).
func (m *ChannelManager) scheduleHeartbeatLocked(epoch uint64, delay time.Duration) {
	if m.phase != PhaseSubscribed || !m.visible {
		return
	}
	if delay == 0 {
		delay = m.heartbeatEvery
	}
	if m.heartbeatTimer != nil {
		m.heartbeatTimer.Stop()
	}
	m.heartbeatTimer = time.AfterFunc(delay, func() {
		m.heartbeat(epoch)
	})
}

// heartbeat sends one liveness probe. A failed probe is treated exactly
// like a connection failure and enters the reconnect path.
func (m *ChannelManager) heartbeat(epoch uint64) {
	m.mu.Lock()
	if m.epoch != epoch || m.phase != PhaseSubscribed || !m.visible || m.conn == nil {
		m.mu.Unlock()
		return
	}
	conn := m.conn
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	err := conn.Ping(ctx)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch || m.phase != PhaseSubscribed {
		return
	}
	if err != nil {
		heartbeatFailuresTotal.Inc()
		m.log.Warn().Err(err).Msg("heartbeat failed")
		m.connectionLostLocked()
		return
	}
	m.scheduleHeartbeatLocked(epoch, 0)
}

// Phase returns the current connection phase.
func (m *ChannelManager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Attempts returns the current reconnect attempt counter.
func (m *ChannelManager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}
