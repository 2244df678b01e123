package aggregator

import (
	"sort"

	"github.com/estraier/stgy-sub003/internal/notifystore"
)

// Contribution is the caller-assembled input to Merge: everything
// needed to build a Record plus the ts the slot should be stamped with.
type Contribution struct {
	UserID       string
	UserNickname string
	PostID       string
	PostSnippet  string
	Ts           int64
}

func (c Contribution) toRecord() notifystore.Record {
	return notifystore.Record{
		UserID:       c.UserID,
		UserNickname: c.UserNickname,
		PostID:       c.PostID,
		PostSnippet:  c.PostSnippet,
		Ts:           c.Ts,
	}
}

func dedupKey(postCentric bool, r notifystore.Record) string {
	if !postCentric {
		return r.UserID
	}
	return r.UserID + "\x00" + r.PostID
}

// NewUser reports whether userID is absent from
// existing's current record set (spec.md §4.5.2 step 3's approximation
// of "never contributed before", documented drift in spec's design
// notes on countUsers).
func NewUser(existing notifystore.AggregatePayload, userID string) bool {
	for _, r := range existing.Records {
		if r.UserID == userID {
			return false
		}
	}
	return true
}

// NewPost reports the analogous check for postId, meaningful only for
// post-centric slots.
func NewPost(existing notifystore.AggregatePayload, postID string) bool {
	return newPost(existing, postID)
}

// Merge applies spec.md §4.5.2 steps 2-6: given the slot's previous
// payload (found reports whether it existed), the capacity and a new
// contribution, it returns the payload to write back. postCentric
// controls record shape (postId/postSnippet); tracksCountPosts
// controls whether countPosts is maintained at all, since spec.md §3
// invariant 6 scopes countPosts to reply/mention only, never like.
// Merge returns only the payload; a caller that needs to know whether
// nickname/snippet lookups are worth doing checks NewUser/NewPost
// before calling it (lookups are the caller's job; Merge itself
// performs no I/O).
func Merge(existing notifystore.AggregatePayload, found bool, postCentric bool, tracksCountPosts bool, cap int, c Contribution) notifystore.AggregatePayload {
	rec := c.toRecord()

	if !found {
		out := notifystore.AggregatePayload{
			CountUsers: 1,
			Records:    []notifystore.Record{rec},
		}
		if tracksCountPosts {
			out.CountPosts = 1
		}
		return out
	}

	isNewUser := NewUser(existing, c.UserID)
	isNewPost := tracksCountPosts && newPost(existing, c.PostID)

	combined := make([]notifystore.Record, 0, len(existing.Records)+1)
	combined = append(combined, existing.Records...)
	combined = append(combined, rec)

	type slot struct {
		idx int
		rec notifystore.Record
	}
	best := make(map[string]slot, len(combined))
	for i, r := range combined {
		key := dedupKey(postCentric, r)
		cur, ok := best[key]
		if !ok || r.Ts >= cur.rec.Ts {
			best[key] = slot{idx: i, rec: r}
		}
	}

	deduped := make([]slot, 0, len(best))
	for _, s := range best {
		deduped = append(deduped, s)
	}
	sort.Slice(deduped, func(i, j int) bool {
		if deduped[i].rec.Ts != deduped[j].rec.Ts {
			return deduped[i].rec.Ts > deduped[j].rec.Ts
		}
		return deduped[i].idx < deduped[j].idx
	})
	if len(deduped) > cap {
		deduped = deduped[:cap]
	}

	records := make([]notifystore.Record, len(deduped))
	for i, s := range deduped {
		records[i] = s.rec
	}

	out := notifystore.AggregatePayload{
		CountUsers: existing.CountUsers,
		CountPosts: existing.CountPosts,
		Records:    records,
	}
	if isNewUser {
		out.CountUsers++
	}
	if tracksCountPosts && isNewPost {
		out.CountPosts++
	}
	return out
}

func newPost(existing notifystore.AggregatePayload, postID string) bool {
	for _, r := range existing.Records {
		if r.PostID == postID {
			return false
		}
	}
	return true
}
