// Package normalize turns raw store records of any known shape into canonical messages.
// Field resolution is a list of small accessors tried in order, so that each
// legacy shape can be tested on its own.
package normalize

import (
	"chat-sync/domain"
	"chat-sync/snapshot"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LegacySelfTag is what delivery chats write in "sender" for the client's own messages.
const LegacySelfTag = "user"

type Kind int

const (
	Unrecognized Kind = iota
	Recognized
)

// Result is either a Recognized message or an Unrecognized record with the reason.
type Result struct {
	Kind    Kind
	Message domain.Message
	Reason  string
}

func (r Result) IsRecognized() bool { return r.Kind == Recognized }

// accessor extracts one text field from a record.
type accessor func(record map[string]any) (string, bool)

var (
	contentAccessors   = fields("content", "message", "text", "body", "data")
	senderAccessors    = fields("senderId", "fromId", "userId", "authorId")
	recipientAccessors = fields("recipientId", "toId", "receiverId", "targetId")
	timestampFields    = []string{"timestamp", "createdAt", "time", "date", "sentAt"}
	nameFields         = []string{"senderName", "recipientName", "senderAvatar"}
	roleTagField       = "sender"
	idField            = "id"
)

// denylist holds the keys that never carry content, even when they are strings.
var denylist = buildDenylist()

func buildDenylist() map[string]struct{} {
	keys := []string{"id", "uid", "key", "ref", "path", "type", "status", roleTagField}
	keys = append(keys, "senderId", "fromId", "userId", "authorId")
	keys = append(keys, "recipientId", "toId", "receiverId", "targetId")
	keys = append(keys, timestampFields...)
	keys = append(keys, nameFields...)
	res := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		res[k] = struct{}{}
	}
	return res
}

// Normalizer is pure apart from its clock and the synthesized ids.
type Normalizer struct {
	selfID string
	now    func() time.Time
}

// NewNormalizer uses time.Now when now is nil.
func NewNormalizer(selfID string, now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{selfID: selfID, now: now}
}

// Normalize maps one raw record, found under key, to a canonical message.
// A record is rejected only when it has neither content nor any sender signal.
func (n *Normalizer) Normalize(conversationID, key string, raw any) Result {
	record, ok := raw.(map[string]any)
	if !ok {
		return Result{Kind: Unrecognized, Reason: fmt.Sprintf("not a record: %T", raw)}
	}

	content, hasContent := resolve(record, contentAccessors...)
	if !hasContent {
		content, hasContent = firstFreeString(record)
	}
	senderID, hasSender := resolve(record, senderAccessors...)
	roleTag, hasTag := stringField(record, roleTagField)
	if !hasContent && !hasSender && !hasTag {
		return Result{Kind: Unrecognized, Reason: "no content and no sender"}
	}

	recipientID, _ := resolve(record, recipientAccessors...)
	role := domain.RoleCounterparty
	switch {
	case hasSender:
		if senderID == n.selfID {
			role = domain.RoleSelf
		}
	case roleTag == LegacySelfTag:
		// the tag tells the role, not who the client is
		role = domain.RoleSelf
	}

	read, status := readState(record)
	id, volatile := n.identify(key, record)

	return Result{
		Kind: Recognized,
		Message: domain.Message{
			ID:             id,
			ConversationID: conversationID,
			Content:        content,
			SenderID:       senderID,
			RecipientID:    recipientID,
			SenderRole:     role,
			Timestamp:      n.timestamp(record),
			Read:           read,
			Status:         status,
			Volatile:       volatile,
		},
	}
}

// Batch normalizes every child of a container snapshot and keeps the recognized ones.
func (n *Normalizer) Batch(conversationID string, path domain.Path, container any) []domain.Message {
	var res []domain.Message
	for _, key := range snapshot.ChildKeys(container) {
		child, _ := snapshot.Descend(container, key)
		result := n.Normalize(conversationID, key, child)
		if !result.IsRecognized() {
			continue
		}
		msg := result.Message
		msg.Path = path.Child(key)
		res = append(res, msg)
	}
	return res
}

func fields(names ...string) []accessor {
	res := make([]accessor, len(names))
	for i, name := range names {
		res[i] = func(record map[string]any) (string, bool) {
			return stringField(record, name)
		}
	}
	return res
}

func resolve(record map[string]any, accessors ...accessor) (string, bool) {
	for _, get := range accessors {
		if v, ok := get(record); ok {
			return v, true
		}
	}
	return "", false
}

// stringField accepts non-blank strings and numbers, numeric ids are common in old records.
func stringField(record map[string]any, name string) (string, bool) {
	switch v := record[name].(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return "", false
		}
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int:
		return strconv.Itoa(v), true
	default:
		return "", false
	}
}

func firstFreeString(record map[string]any) (string, bool) {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, denied := denylist[k]; denied {
			continue
		}
		if s, ok := record[k].(string); ok && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

func readState(record map[string]any) (bool, domain.Status) {
	read, _ := record["read"].(bool)
	raw, _ := record["status"].(string)
	status, ok := domain.ParseStatus(raw)
	switch {
	case ok && status == domain.StatusRead:
		read = true
	case !ok && read:
		status = domain.StatusRead
	case !ok:
		status = domain.StatusSent
	}
	return read, status
}

// identify prefers the container key, then an "id" field, then a volatile local id.
func (n *Normalizer) identify(key string, record map[string]any) (string, bool) {
	if meaningfulKey(key) {
		return key, false
	}
	if id, ok := stringField(record, idField); ok {
		return id, false
	}
	return fmt.Sprintf("local-%d-%s", n.now().UnixMilli(), uuid.NewString()), true
}

func meaningfulKey(key string) bool {
	trimmed := strings.TrimSpace(key)
	switch trimmed {
	case "", "null", "undefined":
		return false
	}
	// bare array index
	if _, err := strconv.Atoi(trimmed); err == nil {
		return false
	}
	return true
}

func (n *Normalizer) timestamp(record map[string]any) int64 {
	now := n.now()
	for _, name := range timestampFields {
		if ts, ok := toMillis(record[name], now); ok {
			return ts
		}
	}
	return now.UnixMilli()
}

func toMillis(raw any, now time.Time) (int64, bool) {
	switch v := raw.(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case map[string]any:
		seconds, ok := number(v["seconds"])
		if !ok {
			return 0, false
		}
		nanos, _ := number(v["nanoseconds"])
		return int64(seconds*1000 + nanos/1e6), true
	case string:
		return parseTime(strings.TrimSpace(v), now)
	default:
		return 0, false
	}
}

func number(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(raw string, now time.Time) (int64, bool) {
	if raw == "" {
		return 0, false
	}
	if millis, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return millis, true
	}
	// legacy "hh:mm" means today at that time
	if strings.Contains(raw, ":") && !strings.Contains(raw, "-") {
		for _, layout := range []string{"15:04", "15:04:05"} {
			clock, err := time.Parse(layout, raw)
			if err != nil {
				continue
			}
			y, m, d := now.Date()
			return time.Date(y, m, d, clock.Hour(), clock.Minute(), clock.Second(), 0, now.Location()).UnixMilli(), true
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}
