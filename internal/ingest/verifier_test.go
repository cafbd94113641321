package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// sign computes the platform-side signature for a body at a timestamp.
func sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + timestamp + ":"))
	mac.Write(body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerify(t *testing.T) {
	secret := "test-signing-secret"
	now := time.Unix(1718000000, 0)
	v := NewVerifier(secret, 300*time.Second, func() time.Time { return now })

	body := []byte(`{"type":"event_callback"}`)
	ts := fmt.Sprintf("%d", now.Unix())

	t.Run("accepts a valid signature", func(t *testing.T) {
		assert.True(t, v.Verify(ts, sign(secret, ts, body), body))
	})

	t.Run("rejects a tampered body", func(t *testing.T) {
		assert.False(t, v.Verify(ts, sign(secret, ts, body), []byte(`{"type":"tampered"}`)))
	})

	t.Run("rejects the wrong secret", func(t *testing.T) {
		assert.False(t, v.Verify(ts, sign("other-secret", ts, body), body))
	})

	t.Run("rejects a signature without the version prefix", func(t *testing.T) {
		valid := sign(secret, ts, body)
		assert.False(t, v.Verify(ts, valid[len("v0="):], body))
	})

	t.Run("rejects a non-numeric timestamp", func(t *testing.T) {
		assert.False(t, v.Verify("not-a-number", sign(secret, "not-a-number", body), body))
	})

	t.Run("rejects an empty signature", func(t *testing.T) {
		assert.False(t, v.Verify(ts, "", body))
	})
}

func TestVerifyReplayWindow(t *testing.T) {
	secret := "test-signing-secret"
	now := time.Unix(1718000000, 0)
	v := NewVerifier(secret, 300*time.Second, func() time.Time { return now })
	body := []byte(`{}`)

	t.Run("accepts a timestamp at the window edge", func(t *testing.T) {
		ts := fmt.Sprintf("%d", now.Add(-300*time.Second).Unix())
		assert.True(t, v.Verify(ts, sign(secret, ts, body), body))
	})

	t.Run("rejects a timestamp just past the window", func(t *testing.T) {
		ts := fmt.Sprintf("%d", now.Add(-301*time.Second).Unix())
		assert.False(t, v.Verify(ts, sign(secret, ts, body), body))
	})

	t.Run("rejects a future timestamp past the window", func(t *testing.T) {
		ts := fmt.Sprintf("%d", now.Add(301*time.Second).Unix())
		assert.False(t, v.Verify(ts, sign(secret, ts, body), body))
	})

	t.Run("fractional timestamps are accepted inside the window", func(t *testing.T) {
		ts := fmt.Sprintf("%d.000500", now.Unix())
		assert.True(t, v.Verify(ts, sign(secret, ts, body), body))
	})
}
