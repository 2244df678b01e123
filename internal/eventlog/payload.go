package eventlog

import "fmt"

// PayloadType discriminates the tagged union stored in the event log's
// payload column (spec.md §3 "Event payload variants").
type PayloadType string

const (
	PayloadReply   PayloadType = "reply"
	PayloadLike    PayloadType = "like"
	PayloadFollow  PayloadType = "follow"
	PayloadMention PayloadType = "mention"
)

// Payload is the flat JSON shape of one event. Only the fields relevant
// to Type are populated; the rest are omitted on marshal.
type Payload struct {
	Type PayloadType `json:"type"`

	UserID        string `json:"userId,omitempty"`
	PostID        string `json:"postId,omitempty"`
	ReplyToPostID string `json:"replyToPostId,omitempty"`

	FollowerID string `json:"followerId,omitempty"`
	FolloweeID string `json:"followeeId,omitempty"`

	MentionedUserID string `json:"mentionedUserId,omitempty"`
}

// AffinityKey returns the recipient-affinity key used to pick a
// partition (spec.md §4.2.1). For follow, like and reply it is the
// field that sends every event merging into the same slot to the same
// partition. For mention it is the mentioned user, while the slot is
// keyed by the post and its owner, so two mentions that merge into one
// slot can land on different partitions.
func (p Payload) AffinityKey() (string, error) {
	switch p.Type {
	case PayloadFollow:
		return p.FolloweeID, nil
	case PayloadLike:
		return p.PostID, nil
	case PayloadReply:
		return p.ReplyToPostID, nil
	case PayloadMention:
		return p.MentionedUserID, nil
	default:
		return "", fmt.Errorf("eventlog: unknown payload type %q", p.Type)
	}
}
