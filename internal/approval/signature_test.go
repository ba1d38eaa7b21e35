package approval_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"skyreach/internal/approval"
	"skyreach/internal/core"
)

const testSecret = "8f742231b10e8888abcd99yyyzzz85a5"

func sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:%s", timestamp, body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func testVerifier(now time.Time) approval.Verifier {
	return approval.Verifier{
		Secret: testSecret,
		Skew:   5 * time.Minute,
		Now:    func() time.Time { return now },
	}
}

func TestVerifyAccepts(t *testing.T) {
	t.Parallel()

	now := time.Now()
	body := []byte("payload=%7B%22type%22%3A%22block_actions%22%7D")
	ts := strconv.FormatInt(now.Unix(), 10)

	err := testVerifier(now).Verify(body, ts, sign(testSecret, ts, body))
	require.NoError(t, err)
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	t.Parallel()

	now := time.Now()
	body := []byte("payload=original")
	ts := strconv.FormatInt(now.Unix(), 10)
	sig := sign(testSecret, ts, body)

	err := testVerifier(now).Verify([]byte("payload=tampered"), ts, sig)
	require.ErrorIs(t, err, core.ErrSignatureInvalid)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	now := time.Now()
	body := []byte("payload=x")
	ts := strconv.FormatInt(now.Unix(), 10)

	err := testVerifier(now).Verify(body, ts, sign("other-secret", ts, body))
	require.ErrorIs(t, err, core.ErrSignatureInvalid)
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	t.Parallel()

	now := time.Now()
	body := []byte("payload=x")

	// Correctly signed, but ten minutes old.
	ts := strconv.FormatInt(now.Add(-10*time.Minute).Unix(), 10)

	err := testVerifier(now).Verify(body, ts, sign(testSecret, ts, body))
	require.ErrorIs(t, err, core.ErrSignatureInvalid)
}

func TestVerifyRejectsFutureTimestamp(t *testing.T) {
	t.Parallel()

	now := time.Now()
	body := []byte("payload=x")
	ts := strconv.FormatInt(now.Add(10*time.Minute).Unix(), 10)

	err := testVerifier(now).Verify(body, ts, sign(testSecret, ts, body))
	require.ErrorIs(t, err, core.ErrSignatureInvalid)
}

func TestVerifyRejectsGarbageTimestamp(t *testing.T) {
	t.Parallel()

	err := testVerifier(time.Now()).Verify([]byte("payload=x"), "not-a-number", "v0=deadbeef")
	require.ErrorIs(t, err, core.ErrSignatureInvalid)
}
