package aggregator_test

import (
	"testing"
	"time"

	"github.com/estraier/stgy-sub003/internal/aggregator"
	"github.com/estraier/stgy-sub003/internal/eventlog"
)

func TestSlotKeyPerVariant(t *testing.T) {
	cases := []struct {
		payload eventlog.Payload
		want    string
	}{
		{eventlog.Payload{Type: eventlog.PayloadFollow, FollowerID: "U1", FolloweeID: "U2"}, "follow"},
		{eventlog.Payload{Type: eventlog.PayloadLike, UserID: "U1", PostID: "P9"}, "like:P9"},
		{eventlog.Payload{Type: eventlog.PayloadReply, UserID: "U1", PostID: "P10", ReplyToPostID: "P9"}, "reply:P9"},
		{eventlog.Payload{Type: eventlog.PayloadMention, UserID: "U1", PostID: "P9", MentionedUserID: "U2"}, "mention:P9"},
	}
	for _, c := range cases {
		got, err := aggregator.SlotKey(c.payload)
		if err != nil {
			t.Fatalf("unexpected error for %+v: %v", c.payload, err)
		}
		if got != c.want {
			t.Fatalf("SlotKey(%+v) = %q, want %q", c.payload, got, c.want)
		}
	}
}

func TestSlotKeyUnknownType(t *testing.T) {
	_, err := aggregator.SlotKey(eventlog.Payload{Type: "bogus"})
	if err == nil {
		t.Fatal("expected error for unknown payload type")
	}
}

func TestIsPostCentric(t *testing.T) {
	if aggregator.IsPostCentric(eventlog.PayloadFollow) {
		t.Fatal("follow should not be post-centric")
	}
	for _, pt := range []eventlog.PayloadType{eventlog.PayloadLike, eventlog.PayloadReply, eventlog.PayloadMention} {
		if !aggregator.IsPostCentric(pt) {
			t.Fatalf("%s should be post-centric", pt)
		}
	}
}

func TestTracksCountPosts(t *testing.T) {
	for _, pt := range []eventlog.PayloadType{eventlog.PayloadFollow, eventlog.PayloadLike} {
		if aggregator.TracksCountPosts(pt) {
			t.Fatalf("%s should not track countPosts", pt)
		}
	}
	for _, pt := range []eventlog.PayloadType{eventlog.PayloadReply, eventlog.PayloadMention} {
		if !aggregator.TracksCountPosts(pt) {
			t.Fatalf("%s should track countPosts", pt)
		}
	}
}

func TestTermCrossesDayBoundaryInUTC(t *testing.T) {
	loc := time.UTC
	end := time.Date(2025, 6, 1, 23, 59, 0, 0, loc).UnixMilli()
	start := time.Date(2025, 6, 2, 0, 1, 0, 0, loc).UnixMilli()

	if got := aggregator.Term(end, loc); got != "2025-06-01" {
		t.Fatalf("expected 2025-06-01, got %s", got)
	}
	if got := aggregator.Term(start, loc); got != "2025-06-02" {
		t.Fatalf("expected 2025-06-02, got %s", got)
	}
}
