// Package ingest is the webhook ingestion edge: signature verification,
// payload parsing into canonical events, dedup, and the partitioned queue
// that hands events to the coordinator.
//
// The ingestion path never does downstream processing synchronously. Its job
// is to authenticate, normalize and enqueue within the platform's delivery
// timeout, then get out of the way.
package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// signaturePrefix is the version tag the chat platform prepends to both the
// signed base string and the hex digest.
const signaturePrefix = "v0"

// Verifier checks webhook request signatures. The platform signs
// "v0:{timestamp}:{body}" with HMAC-SHA256 using the shared signing secret
// and sends the hex digest as "v0=<hex>".
type Verifier struct {
	secret       []byte
	replayWindow time.Duration
	now          func() time.Time
}

// NewVerifier creates a verifier for one signing secret. A nil nowFn defaults
// to time.Now; tests inject a fixed clock.
func NewVerifier(secret string, replayWindow time.Duration, nowFn func() time.Time) *Verifier {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Verifier{
		secret:       []byte(secret),
		replayWindow: replayWindow,
		now:          nowFn,
	}
}

// Verify reports whether the signature is valid for the timestamp and body.
// Malformed input is simply invalid, never an error. Requests whose timestamp
// lies outside the replay window are rejected before any HMAC work.
func (v *Verifier) Verify(timestamp, signature string, body []byte) bool {
	ts, err := strconv.ParseFloat(timestamp, 64)
	if err != nil {
		return false
	}

	age := v.now().Unix() - int64(ts)
	if age < 0 {
		age = -age
	}
	if age > int64(v.replayWindow.Seconds()) {
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(signaturePrefix + ":" + timestamp + ":"))
	mac.Write(body)
	expected := signaturePrefix + "=" + hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
