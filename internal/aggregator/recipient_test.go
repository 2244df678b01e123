package aggregator_test

import (
	"context"
	"testing"

	"github.com/estraier/stgy-sub003/internal/aggregator"
	"github.com/estraier/stgy-sub003/internal/eventlog"
)

type fakePostStore struct {
	owners   map[string]string
	snippets map[string]string
}

func (f fakePostStore) OwnerOf(ctx context.Context, postID string) (string, bool, error) {
	owner, ok := f.owners[postID]
	return owner, ok, nil
}

func (f fakePostStore) Snippet(ctx context.Context, postID string) (string, bool, error) {
	body, ok := f.snippets[postID]
	return body, ok, nil
}

func TestResolveFollowIsDirect(t *testing.T) {
	p := eventlog.Payload{Type: eventlog.PayloadFollow, FollowerID: "U1", FolloweeID: "U2"}
	recipient, found, err := aggregator.Resolve(context.Background(), fakePostStore{}, p)
	if err != nil || !found || recipient != "U2" {
		t.Fatalf("got (%q, %v, %v)", recipient, found, err)
	}
}

func TestResolveLikeLooksUpPostOwner(t *testing.T) {
	posts := fakePostStore{owners: map[string]string{"P9": "U2"}}
	p := eventlog.Payload{Type: eventlog.PayloadLike, UserID: "U1", PostID: "P9"}
	recipient, found, err := aggregator.Resolve(context.Background(), posts, p)
	if err != nil || !found || recipient != "U2" {
		t.Fatalf("got (%q, %v, %v)", recipient, found, err)
	}
}

func TestResolveReplyUsesParentPost(t *testing.T) {
	posts := fakePostStore{owners: map[string]string{"P9": "U2"}}
	p := eventlog.Payload{Type: eventlog.PayloadReply, UserID: "U1", PostID: "P10", ReplyToPostID: "P9"}
	recipient, found, err := aggregator.Resolve(context.Background(), posts, p)
	if err != nil || !found || recipient != "U2" {
		t.Fatalf("got (%q, %v, %v)", recipient, found, err)
	}
}

func TestResolveDeletedPostNotFound(t *testing.T) {
	posts := fakePostStore{}
	p := eventlog.Payload{Type: eventlog.PayloadLike, UserID: "U1", PostID: "P404"}
	_, found, err := aggregator.Resolve(context.Background(), posts, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected found=false for deleted post")
	}
}

func TestIsSelfInteraction(t *testing.T) {
	cases := []struct {
		payload   eventlog.Payload
		recipient string
		want      bool
	}{
		{eventlog.Payload{Type: eventlog.PayloadFollow, FollowerID: "U1", FolloweeID: "U1"}, "U1", true},
		{eventlog.Payload{Type: eventlog.PayloadFollow, FollowerID: "U1", FolloweeID: "U2"}, "U2", false},
		{eventlog.Payload{Type: eventlog.PayloadLike, UserID: "U1"}, "U1", true},
		{eventlog.Payload{Type: eventlog.PayloadLike, UserID: "U1"}, "U2", false},
		{eventlog.Payload{Type: eventlog.PayloadMention, UserID: "U1", MentionedUserID: "U1"}, "U1", true},
		{eventlog.Payload{Type: eventlog.PayloadMention, UserID: "U1", MentionedUserID: "U2"}, "U2", false},
	}
	for _, c := range cases {
		if got := aggregator.IsSelfInteraction(c.payload, c.recipient); got != c.want {
			t.Fatalf("IsSelfInteraction(%+v, %q) = %v, want %v", c.payload, c.recipient, got, c.want)
		}
	}
}
