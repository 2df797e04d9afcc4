package watcher

import "time"

// DefaultSettleDelay is how long a file must stay unchanged before an event
// is emitted.
const DefaultSettleDelay = 200 * time.Millisecond

// Options configures the watcher.
type Options struct {
	SettleDelay time.Duration
}

// setDefaults applies default values to unset options.
func (o *Options) setDefaults() {
	if o.SettleDelay <= 0 {
		o.SettleDelay = DefaultSettleDelay
	}
}
