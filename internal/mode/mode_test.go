package mode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromString(t *testing.T) {
	assert.Equal(t, Live, FromString("LIVE"))
	assert.Equal(t, Live, FromString(" live "))
	assert.Equal(t, Mock, FromString("MOCK"))
	assert.Equal(t, Mock, FromString(""))
	assert.Equal(t, Mock, FromString("garbage"))
}

func TestSetNotifiesSubscribers(t *testing.T) {
	m := NewManager(Mock)
	var seen []Mode
	m.OnChange(func(mode Mode) { seen = append(seen, mode) })

	m.Set(Live)
	m.Set(Live) // no-op, mode unchanged
	m.Set(Mock)

	assert.Equal(t, []Mode{Live, Mock}, seen)
	assert.Equal(t, Mock, m.Current())
	assert.False(t, m.IsLive())
}
