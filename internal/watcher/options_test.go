package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptions_Defaults(t *testing.T) {
	opts := Options{}
	opts.setDefaults()
	assert.Equal(t, DefaultSettleDelay, opts.SettleDelay)

	opts = Options{SettleDelay: -time.Second}
	opts.setDefaults()
	assert.Equal(t, DefaultSettleDelay, opts.SettleDelay)
}

func TestOptions_CustomValues(t *testing.T) {
	opts := Options{SettleDelay: 50 * time.Millisecond}
	opts.setDefaults()
	assert.Equal(t, 50*time.Millisecond, opts.SettleDelay)
}
