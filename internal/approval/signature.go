package approval

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"skyreach/internal/core"
)

// Verifier checks the Slack v0 request signature: HMAC-SHA256 over
// "v0:<timestamp>:<body>" with the signing secret, compared in constant
// time. Requests with a timestamp outside the skew window are rejected
// even when the signature matches, which caps replay of captured
// requests.
type Verifier struct {
	Secret string
	Skew   time.Duration

	Now func() time.Time // for tests
}

func (v Verifier) Verify(body []byte, timestamp, signature string) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp %q", core.ErrSignatureInvalid, timestamp)
	}

	now := time.Now
	if v.Now != nil {
		now = v.Now
	}

	age := now().Sub(time.Unix(ts, 0))
	if age < 0 {
		age = -age
	}
	if age > v.Skew {
		return fmt.Errorf("%w: timestamp outside skew window (%s)", core.ErrSignatureInvalid, age)
	}

	mac := hmac.New(sha256.New, []byte(v.Secret))
	fmt.Fprintf(mac, "v0:%s:%s", timestamp, body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("%w: signature mismatch", core.ErrSignatureInvalid)
	}

	return nil
}
