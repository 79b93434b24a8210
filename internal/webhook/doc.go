// Package webhook implements the signed ingestion path for conversation
// callbacks: HMAC-SHA256 verification, classification, and persistence.
//
// The sender signs the byte sequence "{timestamp}." + raw body with a
// pre-shared secret and delivers the digest either in a combined
// "ElevenLabs-Signature: t=<ts>,v0=<hex>" header or as a bare/sha256-prefixed
// hex digest alongside a separate "ElevenLabs-Timestamp" header.
//
// # Security Model
//
// - Digests verified with crypto/subtle (constant-time comparison)
// - Signed timestamp bounds the replay window (default ±300s)
// - Body read raw before parsing; verification covers the exact bytes sent
// - Body size limits enforced to prevent DoS
// - No detail about which check failed leaks to the caller (generic 401)
// - The secret is process-wide read-only configuration, fixed at startup
//
// # Request Flow
//
//  1. HTTP POST arrives, raw body read (reject with 413 if too large)
//  2. Missing secret rejected with 500 (deployment error, not client error)
//  3. Signature and timestamp extracted, digest verified (401 on mismatch)
//  4. Body parsed as JSON (400 on failure, nothing persisted)
//  5. Payload persisted verbatim regardless of type
//  6. Known types acknowledged 200 {"ok":true}; unknown types 202
//     {"status":"ignored","reason":"unknown_type"}
//
// Heavy processing never happens inline: transcription analysis is enqueued
// on the task queue and audio extraction is a quick best-effort decode. The
// sender treats slow responses as failures and retries, so the handler must
// respond promptly regardless of payload size.
package webhook
