package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/workloop/notify-go/internal/realtime"
	"github.com/workloop/notify-go/internal/types"
)

// fakeConn is a scripted subscription: events pushed into the channel are
// delivered by ReadEvent, closing fail makes the next read return an error.
type fakeConn struct {
	events chan types.ChangeEvent
	fail   chan struct{}

	mu      sync.Mutex
	pingErr error
	pings   int
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		events: make(chan types.ChangeEvent, 8),
		fail:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadEvent(ctx context.Context) (types.ChangeEvent, error) {
	select {
	case ev := <-c.events:
		return ev, nil
	case <-c.fail:
		return types.ChangeEvent{}, errors.New("connection lost")
	case <-ctx.Done():
		return types.ChangeEvent{}, ctx.Err()
	}
}

func (c *fakeConn) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
	return c.pingErr
}

func (c *fakeConn) setPingErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pingErr = err
}

func (c *fakeConn) pingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeDialer hands out fakeConns, optionally failing the first n dials.
type fakeDialer struct {
	mu        sync.Mutex
	failFirst int
	dials     int
	conns     []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, userID string) (realtime.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.dials <= d.failFirst {
		return nil, errors.New("dial refused")
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < len(d.conns) {
		return d.conns[i]
	}
	return nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestChannel(t *testing.T, d *fakeDialer, cfg Config) (*ChannelManager, *Store) {
	t.Helper()
	b := &stubBackend{}
	s := newTestStore(t, b)
	if err := s.Initialize(context.Background(), "user-1", false); err != nil {
		t.Fatalf("store Initialize: %v", err)
	}
	m := newChannelManager(d, s, cfg, zerolog.Nop())
	t.Cleanup(m.Disconnect)
	return m, s
}

func fastConfig() Config {
	cfg := testConfig()
	cfg.HeartbeatInterval = 20 * time.Millisecond
	cfg.ReconnectBaseDelay = 5 * time.Millisecond
	cfg.ReconnectMaxDelay = 20 * time.Millisecond
	return cfg
}

func TestChannelConnectSubscribes(t *testing.T) {
	d := &fakeDialer{}
	m, _ := newTestChannel(t, d, testConfig())

	m.Connect("user-1")
	waitFor(t, "subscribed", func() bool { return m.Phase() == PhaseSubscribed })
	if d.dialCount() != 1 {
		t.Fatalf("dials = %d, want 1", d.dialCount())
	}
}

func TestChannelConnectSameUserIsNoop(t *testing.T) {
	d := &fakeDialer{}
	m, _ := newTestChannel(t, d, testConfig())

	m.Connect("user-1")
	waitFor(t, "subscribed", func() bool { return m.Phase() == PhaseSubscribed })
	m.Connect("user-1")
	time.Sleep(20 * time.Millisecond)
	if d.dialCount() != 1 {
		t.Fatalf("re-connecting the same subscribed user dialed again: %d dials", d.dialCount())
	}
}

func TestChannelDeliversEventsToStore(t *testing.T) {
	d := &fakeDialer{}
	m, s := newTestChannel(t, d, testConfig())

	m.Connect("user-1")
	waitFor(t, "subscribed", func() bool { return m.Phase() == PhaseSubscribed })

	r := row("n1", types.KindMessageReceived, time.Now().UTC())
	d.conn(0).events <- types.ChangeEvent{New: &r}

	waitFor(t, "event applied", func() bool { return len(s.Notifications()) == 1 })
}

func TestChannelReconnectsAfterDrop(t *testing.T) {
	d := &fakeDialer{}
	m, _ := newTestChannel(t, d, fastConfig())

	resubscribed := make(chan struct{}, 1)
	m.onResubscribed = func() { resubscribed <- struct{}{} }

	m.Connect("user-1")
	waitFor(t, "subscribed", func() bool { return m.Phase() == PhaseSubscribed })

	close(d.conn(0).fail)
	waitFor(t, "resubscribed", func() bool { return d.dialCount() == 2 && m.Phase() == PhaseSubscribed })

	select {
	case <-resubscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("onResubscribed never ran")
	}
	if !d.conn(0).isClosed() {
		t.Fatal("dropped connection was not closed")
	}
	if m.Attempts() != 0 {
		t.Fatalf("attempts = %d, want 0 after successful reconnect", m.Attempts())
	}
}

func TestChannelRetriesFailedDials(t *testing.T) {
	d := &fakeDialer{failFirst: 3}
	m, _ := newTestChannel(t, d, fastConfig())

	m.Connect("user-1")
	waitFor(t, "eventual subscribe", func() bool { return m.Phase() == PhaseSubscribed })
	if d.dialCount() != 4 {
		t.Fatalf("dials = %d, want 4", d.dialCount())
	}
}

func TestChannelBackoffScheduleIsBoundedAndDeterministic(t *testing.T) {
	cfg := testConfig() // base 2s, max 30s
	m := newChannelManager(&fakeDialer{}, nil, cfg, zerolog.Nop())

	want := []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, w := range want {
		got := m.nextDelayLocked()
		if got != w {
			t.Fatalf("delay %d = %v, want %v", i, got, w)
		}
	}
}

func TestChannelOfflineParksWithoutRetrying(t *testing.T) {
	d := &fakeDialer{}
	m, _ := newTestChannel(t, d, fastConfig())

	m.Connect("user-1")
	waitFor(t, "subscribed", func() bool { return m.Phase() == PhaseSubscribed })

	m.SetOnline(false)
	close(d.conn(0).fail)
	waitFor(t, "disconnected", func() bool { return m.Phase() == PhaseDisconnected })

	time.Sleep(50 * time.Millisecond)
	if d.dialCount() != 1 {
		t.Fatalf("offline manager kept dialing: %d dials", d.dialCount())
	}

	m.SetOnline(true)
	waitFor(t, "resubscribed after online", func() bool { return m.Phase() == PhaseSubscribed })
	if m.Attempts() != 0 {
		t.Fatalf("attempts = %d, want 0 after connectivity-triggered reconnect", m.Attempts())
	}
}

func TestChannelOnlineSignalCancelsPendingReconnect(t *testing.T) {
	d := &fakeDialer{failFirst: 1000} // keep every dial failing
	cfg := fastConfig()
	cfg.ReconnectBaseDelay = 10 * time.Second // park the timer far out
	cfg.ReconnectMaxDelay = 10 * time.Second
	m, _ := newTestChannel(t, d, cfg)

	m.Connect("user-1")
	waitFor(t, "reconnect scheduled", func() bool { return m.Phase() == PhaseReconnectScheduled })
	dials := d.dialCount()

	m.SetOnline(false)
	m.SetOnline(true)
	waitFor(t, "immediate reconnect attempt", func() bool { return d.dialCount() > dials })
}

func TestChannelDisconnectIsTerminal(t *testing.T) {
	d := &fakeDialer{}
	m, _ := newTestChannel(t, d, fastConfig())

	m.Connect("user-1")
	waitFor(t, "subscribed", func() bool { return m.Phase() == PhaseSubscribed })

	m.Disconnect()
	if m.Phase() != PhaseDisconnected {
		t.Fatalf("Phase = %v, want disconnected", m.Phase())
	}
	if !d.conn(0).isClosed() {
		t.Fatal("Disconnect did not close the connection")
	}
	time.Sleep(50 * time.Millisecond)
	if d.dialCount() != 1 {
		t.Fatal("Disconnect must not schedule reconnects")
	}
}

func TestChannelHeartbeatProbesWhileVisible(t *testing.T) {
	d := &fakeDialer{}
	m, _ := newTestChannel(t, d, fastConfig())

	m.Connect("user-1")
	waitFor(t, "subscribed", func() bool { return m.Phase() == PhaseSubscribed })
	waitFor(t, "pings", func() bool { return d.conn(0).pingCount() >= 2 })
}

func TestChannelHeartbeatStopsWhileHidden(t *testing.T) {
	d := &fakeDialer{}
	m, _ := newTestChannel(t, d, fastConfig())

	m.Connect("user-1")
	waitFor(t, "subscribed", func() bool { return m.Phase() == PhaseSubscribed })

	m.SetVisible(false)
	base := d.conn(0).pingCount()
	time.Sleep(80 * time.Millisecond)
	if got := d.conn(0).pingCount(); got > base {
		t.Fatalf("heartbeat fired while hidden: %d > %d", got, base)
	}

	m.SetVisible(true)
	waitFor(t, "heartbeat resumes", func() bool { return d.conn(0).pingCount() > base })
}

func TestChannelHeartbeatFailureTriggersReconnect(t *testing.T) {
	d := &fakeDialer{}
	m, _ := newTestChannel(t, d, fastConfig())

	m.Connect("user-1")
	waitFor(t, "subscribed", func() bool { return m.Phase() == PhaseSubscribed })

	d.conn(0).setPingErr(errors.New("peer gone"))
	waitFor(t, "reconnect after failed ping", func() bool {
		return d.dialCount() >= 2 && m.Phase() == PhaseSubscribed
	})
	if !d.conn(0).isClosed() {
		t.Fatal("connection with failed heartbeat was not closed")
	}
}

func TestChannelUserSwitchRedials(t *testing.T) {
	d := &fakeDialer{}
	m, _ := newTestChannel(t, d, testConfig())

	m.Connect("user-1")
	waitFor(t, "subscribed", func() bool { return m.Phase() == PhaseSubscribed })

	m.Connect("user-2")
	waitFor(t, "second dial", func() bool { return d.dialCount() == 2 })
	if !d.conn(0).isClosed() {
		t.Fatal("previous user's connection was not closed")
	}
}
