package aggregator

import (
	"context"
	"errors"
	"fmt"

	"github.com/estraier/stgy-sub003/internal/eventlog"
	"github.com/estraier/stgy-sub003/internal/readside"
)

// ErrUnknownPayloadType marks a Permanent error per spec.md §7: the
// worker logs it and advances the cursor rather than retrying forever.
var ErrUnknownPayloadType = errors.New("aggregator: unknown payload type")

// Resolve determines who a payload's notification belongs to (spec.md
// §4.5.1). follow names the recipient directly; like, reply and
// mention resolve it through the owner of the post they refer to (for
// reply, the parent post; for mention, the post the mention appears
// in). found is false when the referenced post has already been
// deleted, in which case the caller must take the Logical-skip path
// (advance the cursor without writing a slot).
func Resolve(ctx context.Context, posts readside.PostStore, p eventlog.Payload) (recipient string, found bool, err error) {
	switch p.Type {
	case eventlog.PayloadFollow:
		return p.FolloweeID, true, nil
	case eventlog.PayloadLike, eventlog.PayloadMention:
		owner, ok, err := posts.OwnerOf(ctx, p.PostID)
		if err != nil {
			return "", false, fmt.Errorf("aggregator: resolve %s recipient: %w", p.Type, err)
		}
		return owner, ok, nil
	case eventlog.PayloadReply:
		owner, ok, err := posts.OwnerOf(ctx, p.ReplyToPostID)
		if err != nil {
			return "", false, fmt.Errorf("aggregator: resolve reply recipient: %w", err)
		}
		return owner, ok, nil
	default:
		return "", false, fmt.Errorf("%w: %q", ErrUnknownPayloadType, p.Type)
	}
}

// IsSelfInteraction reports whether an event should be dropped as a
// notification to oneself (spec.md §4.5.1 "Self-interaction"). recipient
// is only consulted for like/reply, since follow and mention name both
// parties directly in the payload.
func IsSelfInteraction(p eventlog.Payload, recipient string) bool {
	switch p.Type {
	case eventlog.PayloadFollow:
		return p.FollowerID == p.FolloweeID
	case eventlog.PayloadMention:
		return p.UserID == p.MentionedUserID
	case eventlog.PayloadLike, eventlog.PayloadReply:
		return p.UserID == recipient
	default:
		return false
	}
}

// PostID returns the post a payload's Record should be keyed and
// enriched with (spec.md §4.5.2, §8 scenario 6): the post the action
// happened on, which for reply is the new reply itself, not the parent
// it replied to (the parent only selects the slot).
func PostID(p eventlog.Payload) string {
	switch p.Type {
	case eventlog.PayloadLike, eventlog.PayloadReply, eventlog.PayloadMention:
		return p.PostID
	default:
		return ""
	}
}

// ActorID returns the user whose nickname/record should represent this
// event (the one performing the action, never the recipient).
func ActorID(p eventlog.Payload) string {
	switch p.Type {
	case eventlog.PayloadFollow:
		return p.FollowerID
	default:
		return p.UserID
	}
}
