package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimiterPerUserAndClass(t *testing.T) {
	l := NewLimiter(map[string]LimitRule{
		LIMIT_CLASS_VIDEO: {PerMinute: 1, Burst: 2},
	})

	ok, _ := l.Allow("u1", LIMIT_CLASS_VIDEO)
	assert.True(t, ok)
	ok, _ = l.Allow("u1", LIMIT_CLASS_VIDEO)
	assert.True(t, ok)

	ok, wait := l.Allow("u1", LIMIT_CLASS_VIDEO)
	assert.False(t, ok)
	assert.Greater(t, wait, 0)
	assert.LessOrEqual(t, wait, 60)

	// other users and classes keep their own buckets
	ok, _ = l.Allow("u2", LIMIT_CLASS_VIDEO)
	assert.True(t, ok)
	ok, _ = l.Allow("u1", LIMIT_CLASS_IMAGE)
	assert.True(t, ok)

	ok, _ = l.Allow("u1", "unknown")
	assert.True(t, ok)
}
