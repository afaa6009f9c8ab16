package chat

import (
	"sort"
	"strconv"
	"time"
)

// DedupKey identifies a message by body and timestamp at transport precision.
func DedupKey(body string, at time.Time) string {
	return strconv.FormatInt(at.UTC().UnixMilli(), 10) + "\x00" + body
}

// SortChronological orders messages by CreatedAt ascending. Equal timestamps
// keep their arrival order.
func SortChronological(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
}

// MergeHistories unions durable and transport-delivered history into one
// ordered, de-duplicated view. Durable entries win over transport entries with
// the same DedupKey; arrival order is durable order followed by transport
// delivery order.
func MergeHistories(durable, transport []Message) []Message {
	merged := make([]Message, 0, len(durable)+len(transport))
	seen := make(map[string]struct{}, len(durable)+len(transport))

	for _, m := range durable {
		seen[DedupKey(m.Body, m.CreatedAt)] = struct{}{}
		merged = append(merged, m)
	}
	for _, m := range transport {
		key := DedupKey(m.Body, m.CreatedAt)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, m)
	}

	SortChronological(merged)
	return merged
}
