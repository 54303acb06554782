package notify

// Environment signals. The embedding application forwards its platform's
// visibility and connectivity notifications here; the engine never probes
// for them itself.

// SetVisible feeds the page visibility signal to the channel manager.
// Hiding stops heartbeats; becoming visible while subscribed probes the
// connection immediately.
func (e *Engine) SetVisible(visible bool) { e.channel.SetVisible(visible) }

// SetOnline feeds the network connectivity signal to the channel manager.
// Going offline parks a broken channel instead of retrying; regaining
// connectivity reconnects immediately with a reset backoff schedule.
func (e *Engine) SetOnline(online bool) { e.channel.SetOnline(online) }
