package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Verifier validates inbound webhook authenticity: a shared secret, a signed
// timestamp bounding the replay window, and an HMAC-SHA256 digest over the
// exact raw body bytes.
type Verifier struct {
	secret  string
	maxSkew time.Duration
	now     func() time.Time
}

// NewVerifier creates a verifier for the given shared secret. maxSkewSeconds
// bounds |now - signed timestamp|; values <= 0 fall back to 300.
func NewVerifier(secret string, maxSkewSeconds int) *Verifier {
	if maxSkewSeconds <= 0 {
		maxSkewSeconds = 300
	}
	return &Verifier{
		secret:  secret,
		maxSkew: time.Duration(maxSkewSeconds) * time.Second,
		now:     time.Now,
	}
}

// Verify checks signatureHeader against the HMAC-SHA256 digest of
// "{timestamp}." + rawBody under the shared secret.
//
// Supported header formats:
//   - "t=<ts>,v0=<hex>" (combined timestamp and digest)
//   - "sha256=<hex>" or "<hex>", with the timestamp in timestampHeader
//
// The digest comparison is constant-time (crypto/subtle); mismatched digest
// lengths fail immediately without byte comparison. All errors are generic
// to prevent information leakage about which check failed.
func (v *Verifier) Verify(rawBody []byte, signatureHeader, timestampHeader string) error {
	if v.secret == "" {
		return fmt.Errorf("webhook verification failed")
	}

	ts, sig := parseSignatureHeader(signatureHeader)
	if ts == "" {
		ts = strings.TrimSpace(timestampHeader)
	}
	if ts == "" || sig == "" {
		return fmt.Errorf("webhook verification failed")
	}

	tsInt, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("webhook verification failed")
	}

	skew := v.now().Unix() - tsInt
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(v.maxSkew/time.Second) {
		return fmt.Errorf("webhook verification failed")
	}

	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write([]byte(strconv.FormatInt(tsInt, 10)))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	expectedMAC := mac.Sum(nil)

	providedMAC, err := hex.DecodeString(sig)
	if err != nil {
		return fmt.Errorf("webhook verification failed")
	}
	if len(providedMAC) != len(expectedMAC) {
		return fmt.Errorf("webhook verification failed")
	}
	if subtle.ConstantTimeCompare(expectedMAC, providedMAC) != 1 {
		return fmt.Errorf("webhook verification failed")
	}
	return nil
}

// parseSignatureHeader extracts timestamp and hex digest from a signature
// header.
//
// Supported formats:
//   - "t=1700000000,v0=3a8f..." (combined)
//   - "sha256=3a8f..." (digest only)
//   - "3a8f..." (plain hex digest)
//
// Either return value may be empty when its part is absent.
func parseSignatureHeader(header string) (timestamp, signature string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ""
	}

	if !strings.Contains(header, "=") {
		return "", header
	}

	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "t="):
			timestamp = strings.TrimPrefix(part, "t=")
		case strings.HasPrefix(part, "v0="):
			signature = strings.TrimPrefix(part, "v0=")
		case strings.HasPrefix(part, "sha256="):
			signature = strings.TrimPrefix(part, "sha256=")
		}
	}
	return timestamp, signature
}

// Sign computes the combined "t=<ts>,v0=<hex>" header value for a body.
// Used for testing and validation against a reference sender.
func Sign(body []byte, timestamp int64, secret string) string {
	return fmt.Sprintf("t=%d,v0=%s", timestamp, computeDigest(body, timestamp, secret))
}

// computeDigest returns the hex HMAC-SHA256 digest of the signing string
// "{timestamp}." + body under secret.
func computeDigest(body []byte, timestamp int64, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
