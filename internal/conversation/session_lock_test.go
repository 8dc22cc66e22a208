package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLocker_ExclusiveUntilReleased(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := NewSessionLocker(client, time.Minute)

	unlock, err := locker.Lock(context.Background(), "whatsapp:+8801712345678")
	require.NoError(t, err)
	assert.True(t, mr.Exists("conversation_lock:whatsapp:+8801712345678"))

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "whatsapp:+8801712345678")
	assert.ErrorIs(t, err, ErrSessionBusy)

	other, err := locker.Lock(context.Background(), "webchat:default")
	require.NoError(t, err)
	other()

	unlock()
	assert.False(t, mr.Exists("conversation_lock:whatsapp:+8801712345678"))

	again, err := locker.Lock(context.Background(), "whatsapp:+8801712345678")
	require.NoError(t, err)
	again()
}

func TestSessionLocker_ReleaseKeepsForeignLock(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := NewSessionLocker(client, time.Minute)

	unlock, err := locker.Lock(context.Background(), "s1")
	require.NoError(t, err)

	// Simulate expiry and takeover by another holder.
	require.NoError(t, mr.Set("conversation_lock:s1", "someone-else"))
	unlock()

	got, err := mr.Get("conversation_lock:s1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}
