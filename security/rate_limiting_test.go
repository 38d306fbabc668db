package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRateLimiter(perMinute int) (*RateLimiter, redismock.ClientMock) {
	client, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(client, perMinute)
	limiter.now = func() time.Time { return time.Unix(6000, 0) }
	return limiter, mock
}

func TestRateLimiter_Allow(t *testing.T) {
	limiter, mock := setupTestRateLimiter(2)
	ctx := context.Background()
	key := "ratelimit:user:dept-a:100"

	mock.ExpectIncr(key).SetVal(1)
	mock.ExpectExpire(key, time.Minute).SetVal(true)
	mock.ExpectIncr(key).SetVal(2)
	mock.ExpectIncr(key).SetVal(3)

	for i, want := range []bool{true, true, false} {
		allowed, err := limiter.Allow(ctx, "user:dept-a")
		require.NoError(t, err)
		assert.Equal(t, want, allowed, "request %d", i+1)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_RedisDownAllows(t *testing.T) {
	limiter, mock := setupTestRateLimiter(2)
	mock.ExpectIncr("ratelimit:ip:10.0.0.1:100").SetErr(errors.New("connection refused"))

	allowed, err := limiter.Allow(context.Background(), "ip:10.0.0.1")
	assert.Error(t, err)
	assert.True(t, allowed)
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter, mock := setupTestRateLimiter(0)

	allowed, err := limiter.Allow(context.Background(), "ip:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsSuspiciousUserAgent(t *testing.T) {
	assert.True(t, isSuspiciousUserAgent("Googlebot/2.1"))
	assert.True(t, isSuspiciousUserAgent("SomeCrawler"))
	assert.False(t, isSuspiciousUserAgent("Mozilla/5.0 (X11; Linux x86_64)"))
	assert.False(t, isSuspiciousUserAgent(""))
}
