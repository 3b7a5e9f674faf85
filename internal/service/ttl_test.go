package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dibs/internal/model"
)

func i64(v int64) *int64 { return &v }

func TestCapFor(t *testing.T) {
	assert.Equal(t, HardCapSeconds, capFor(&model.Environment{}))
	assert.Equal(t, int64(7200), capFor(&model.Environment{MaxTTLSeconds: i64(7200)}))
	// A configured max above the hard cap is still bounded by it.
	assert.Equal(t, HardCapSeconds, capFor(&model.Environment{MaxTTLSeconds: i64(HardCapSeconds + 1)}))
}

func TestGrantTTL(t *testing.T) {
	assert.Equal(t, int64(7200), grantTTL(nil, 7200, HardCapSeconds))
	assert.Equal(t, int64(3600), grantTTL(i64(3600), 7200, HardCapSeconds))
	// The default is clamped silently when it exceeds the cap.
	assert.Equal(t, int64(1800), grantTTL(nil, 7200, 1800))
}

func TestPromotionTTL(t *testing.T) {
	assert.Equal(t, int64(7200), promotionTTL(nil, 7200))
	assert.Equal(t, int64(3600), promotionTTL(i64(3600), 7200))
	assert.Equal(t, HardCapSeconds, promotionTTL(i64(HardCapSeconds+500), 7200))
	// Tiny grants are floored so a promotion is never useless.
	assert.Equal(t, MinPromotedTTLSeconds, promotionTTL(i64(5), 7200))
	assert.Equal(t, MinPromotedTTLSeconds, promotionTTL(nil, 10))
}

func TestExtendedExpiry(t *testing.T) {
	// 2h hold extended by 30m inside a 4h cap.
	exp, ok := extendedExpiry(1000, 1000+7200, 1800, 14400)
	assert.True(t, ok)
	assert.Equal(t, int64(1000+9000), exp)

	// Extension runs into the cap: granted total clamps to cap.
	exp, ok = extendedExpiry(1000, 1000+7200, 14400, 14400)
	assert.True(t, ok)
	assert.Equal(t, int64(1000+14400), exp)

	// Already at cap: no forward movement, nothing to write.
	exp, ok = extendedExpiry(1000, 1000+14400, 600, 14400)
	assert.False(t, ok)
	assert.Equal(t, int64(1000+14400), exp)
}

func TestQueueETA(t *testing.T) {
	assert.Equal(t, int64(3600), queueETA(3600, 1, 7200))
	assert.Equal(t, int64(3600+2*7200), queueETA(3600, 3, 7200))
	// Overdue holder counts as zero remaining, not negative.
	assert.Equal(t, int64(7200), queueETA(-50, 2, 7200))
}
