package store

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Fallbacks used when a payload omits routing fields.
const (
	UnknownType      = "unknown"
	NoConversationID = "no_conversation"

	recordSuffix = ".json"
)

// Meta holds the routing fields extracted from a payload. The rest of the
// payload is opaque and passed through verbatim.
type Meta struct {
	Type           string
	EventTimestamp int64
	ConversationID string
}

type envelope struct {
	Type           string `json:"type"`
	EventTimestamp int64  `json:"event_timestamp"`
	Data           struct {
		ConversationID string `json:"conversation_id"`
	} `json:"data"`
}

// ExtractMeta pulls type, event timestamp and conversation id out of a raw
// payload, applying fallbacks for absent fields. now supplies the timestamp
// fallback; nil means time.Now.
func ExtractMeta(raw []byte, now func() time.Time) Meta {
	if now == nil {
		now = time.Now
	}

	var env envelope
	// A decode failure leaves zero values; fallbacks cover them.
	_ = json.Unmarshal(raw, &env)

	m := Meta{
		Type:           env.Type,
		EventTimestamp: env.EventTimestamp,
		ConversationID: env.Data.ConversationID,
	}
	if m.Type == "" {
		m.Type = UnknownType
	}
	if m.ConversationID == "" {
		m.ConversationID = NoConversationID
	}
	if m.EventTimestamp <= 0 {
		m.EventTimestamp = now().Unix()
	}
	return m
}

// SanitizeID replaces every character outside [A-Za-z0-9_-] with '_',
// keeping ids safe as filename components.
func SanitizeID(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// RecordName derives the record filename for a payload's routing fields.
// The decimal timestamp prefix makes descending lexical sort equivalent to
// descending arrival time. Both sender-supplied segments are sanitized; the
// type field is just as attacker-controlled as the id.
func RecordName(m Meta) string {
	return strconv.FormatInt(m.EventTimestamp, 10) + "_" + SanitizeID(m.Type) + "_" + SanitizeID(m.ConversationID) + recordSuffix
}

// isRecordName reports whether a directory entry name looks like a stored
// record.
func isRecordName(name string) bool {
	return strings.HasSuffix(name, recordSuffix)
}

// matchesConversation reports whether a record name belongs to the given
// sanitized conversation id. Matching is exact on the trailing id segment,
// not substring: ids where one is a substring of another do not collide.
func matchesConversation(name, sanitizedID string) bool {
	return strings.HasSuffix(name, "_"+sanitizedID+recordSuffix)
}
