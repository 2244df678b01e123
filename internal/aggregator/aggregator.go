// Package aggregator implements the Notification Aggregator (spec.md
// §4.5): it resolves an event's recipient, classifies it into a slot,
// and merges it into that slot's capped, deduplicated aggregate. The
// merge decision itself (Merge, in merge.go) is a pure function so it
// can be tested without a database; this file wires it to the
// read-side collaborators and to a caller-supplied transaction.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/estraier/stgy-sub003/internal/eventlog"
	"github.com/estraier/stgy-sub003/internal/idgen"
	"github.com/estraier/stgy-sub003/internal/notifystore"
	"github.com/estraier/stgy-sub003/internal/readside"
	"github.com/estraier/stgy-sub003/internal/snippet"
)

// Outcome reports what ProcessEvent did, for logging/metrics.
type Outcome int

const (
	// Merged means a slot was created or updated.
	Merged Outcome = iota
	// SkippedSelfInteraction means the actor was also the recipient.
	SkippedSelfInteraction
	// SkippedDeletedPost means the referenced post no longer exists.
	SkippedDeletedPost
	// SkippedUnknownType means the payload carried a tag this build
	// doesn't recognize (spec.md §7 Permanent error).
	SkippedUnknownType
)

// Aggregator merges events into notification slots.
type Aggregator struct {
	notifications *notifystore.Store
	posts         readside.PostStore
	users         readside.UserStore
	cap           int
	loc           *time.Location
}

// New constructs an Aggregator. cap bounds each slot's record list
// (spec.md §3 invariant 1); loc is the system time zone used to
// compute a term from an event's timestamp.
func New(notifications *notifystore.Store, posts readside.PostStore, users readside.UserStore, cap int, loc *time.Location) *Aggregator {
	return &Aggregator{notifications: notifications, posts: posts, users: users, cap: cap, loc: loc}
}

// ProcessEvent performs spec.md §4.5 step 3, parts b-d: recipient
// resolution, self-interaction and deleted-post checks, and the merge
// itself. It must run inside tx, the same transaction the caller uses
// to save the cursor, so the aggregate write and the cursor advance
// commit or roll back together (spec.md §4.3).
func (a *Aggregator) ProcessEvent(ctx context.Context, tx pgx.Tx, eventID uint64, payload eventlog.Payload) (Outcome, error) {
	recipient, found, err := Resolve(ctx, a.posts, payload)
	if errors.Is(err, ErrUnknownPayloadType) {
		return SkippedUnknownType, nil
	}
	if err != nil {
		return 0, fmt.Errorf("aggregator: resolve recipient: %w", err)
	}
	if !found {
		return SkippedDeletedPost, nil
	}
	if IsSelfInteraction(payload, recipient) {
		return SkippedSelfInteraction, nil
	}

	slotKey, err := SlotKey(payload)
	if errors.Is(err, ErrUnknownPayloadType) {
		return SkippedUnknownType, nil
	}
	if err != nil {
		return 0, fmt.Errorf("aggregator: slot key: %w", err)
	}
	postCentric := IsPostCentric(payload.Type)
	tracksCountPosts := TracksCountPosts(payload.Type)
	ms := idgen.TimestampOf(eventID)
	term := Term(ms, a.loc)
	ts := ms / 1000

	existing, existed, err := a.notifications.LoadForUpdate(ctx, tx, recipient, slotKey, term)
	if err != nil {
		return 0, fmt.Errorf("aggregator: load slot: %w", err)
	}

	actorID := ActorID(payload)
	postID := PostID(payload)

	needsUserLookup := !existed || NewUser(existing, actorID)
	nickname, err := a.lookupNickname(ctx, actorID, existing, needsUserLookup)
	if err != nil {
		return 0, err
	}

	var postSnippet string
	if postCentric {
		needsPostLookup := !existed || NewPost(existing, postID)
		postSnippet, err = a.lookupSnippet(ctx, postID, existing, needsPostLookup)
		if err != nil {
			return 0, err
		}
	}

	contribution := Contribution{
		UserID:       actorID,
		UserNickname: nickname,
		PostID:       postID,
		PostSnippet:  postSnippet,
		Ts:           ts,
	}
	merged := Merge(existing, existed, postCentric, tracksCountPosts, a.cap, contribution)

	if err := a.notifications.Upsert(ctx, tx, recipient, slotKey, term, merged, ms); err != nil {
		return 0, fmt.Errorf("aggregator: upsert slot: %w", err)
	}
	return Merged, nil
}

// lookupNickname resolves rec's nickname, reusing the cached value
// already present in existing.Records when this user has contributed
// before (spec.md §4.5.2 "Nickname and post snippet enrichment").
func (a *Aggregator) lookupNickname(ctx context.Context, userID string, existing notifystore.AggregatePayload, fresh bool) (string, error) {
	if !fresh {
		for _, r := range existing.Records {
			if r.UserID == userID {
				return r.UserNickname, nil
			}
		}
	}
	nickname, found, err := a.users.Nickname(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("aggregator: lookup nickname: %w", err)
	}
	if !found {
		return "", nil
	}
	return nickname, nil
}

func (a *Aggregator) lookupSnippet(ctx context.Context, postID string, existing notifystore.AggregatePayload, fresh bool) (string, error) {
	if !fresh {
		for _, r := range existing.Records {
			if r.PostID == postID {
				return r.PostSnippet, nil
			}
		}
	}
	markdown, found, err := a.posts.Snippet(ctx, postID)
	if err != nil {
		return "", fmt.Errorf("aggregator: lookup snippet: %w", err)
	}
	if !found {
		return "", nil
	}
	return snippet.Render(markdown), nil
}
