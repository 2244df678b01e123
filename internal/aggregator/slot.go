package aggregator

import (
	"fmt"
	"time"

	"github.com/estraier/stgy-sub003/internal/eventlog"
)

// SlotKey computes the short slot string for a payload (spec.md §3):
// "follow", "like:<postId>", "reply:<postId>" or "mention:<postId>".
func SlotKey(p eventlog.Payload) (string, error) {
	switch p.Type {
	case eventlog.PayloadFollow:
		return "follow", nil
	case eventlog.PayloadLike:
		return "like:" + p.PostID, nil
	case eventlog.PayloadReply:
		return "reply:" + p.ReplyToPostID, nil
	case eventlog.PayloadMention:
		return "mention:" + p.PostID, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPayloadType, p.Type)
	}
}

// IsPostCentric reports whether a payload type's records carry
// postId/postSnippet, as opposed to a user-centric one (follow). This
// is purely about record shape; it says nothing about whether the
// slot tracks countPosts (see TracksCountPosts).
func IsPostCentric(t eventlog.PayloadType) bool {
	return t != eventlog.PayloadFollow
}

// TracksCountPosts reports whether a payload type's slot carries a
// countPosts field (spec.md §3 AggregatePayload, invariant 6: present
// only for reply and mention, never for follow or like).
func TracksCountPosts(t eventlog.PayloadType) bool {
	return t == eventlog.PayloadReply || t == eventlog.PayloadMention
}

// Term formats ms (milliseconds since Unix epoch) as a YYYY-MM-DD
// calendar-date bucket in loc (spec.md §3 "term").
func Term(ms int64, loc *time.Location) string {
	return time.UnixMilli(ms).In(loc).Format("2006-01-02")
}
