package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedforumdev/fedforum/server/activity"
	"github.com/fedforumdev/fedforum/server/fetch"
	"github.com/fedforumdev/fedforum/server/storage"
)

// seedRemoteCommunity persists a public remote community plus a member
// person on the same domain, so delete verification runs without any
// network fetches.
func seedRemoteCommunity(t *testing.T, store storage.Database) (*storage.Community, *storage.Person) {
	t.Helper()
	community := &storage.Community{
		ID:           "https://remote.tld/c/books",
		Name:         "books",
		Domain:       "remote.tld",
		FollowersURL: "https://remote.tld/c/books/followers",
		Visibility:   storage.VisibilityPublic,
	}
	require.NoError(t, store.SaveCommunity(community))
	person := &storage.Person{
		ID:     "https://remote.tld/u/alice",
		Name:   "alice",
		Domain: "remote.tld",
	}
	require.NoError(t, store.SavePerson(person))
	return community, person
}

func TestReceiveDelete_PostThenUndo(t *testing.T) {
	ti := newTestInbox(t)
	community, person := seedRemoteCommunity(t, ti.store)
	post := &storage.Post{
		ID:          "https://remote.tld/post/1",
		Title:       "hello",
		CreatorID:   person.ID,
		CommunityID: community.ID,
	}
	require.NoError(t, ti.store.SavePost(post))

	to := []string{activity.PublicAddress, community.FollowersURL}
	del := activity.NewDelete("remote.tld", person.ID, post.ID, to, nil)

	require.NoError(t, ti.inbox.ReceiveActivity(context.Background(), mustMarshal(t, del)))
	saved, err := ti.store.FindPost(post.ID)
	require.NoError(t, err)
	assert.True(t, saved.Deleted)

	// Redelivery of the same Delete is acknowledged without error.
	require.NoError(t, ti.inbox.ReceiveActivity(context.Background(), mustMarshal(t, del)))

	undo := activity.NewUndoDelete("remote.tld", person.ID, post.ID, to, nil)
	require.NoError(t, ti.inbox.ReceiveActivity(context.Background(), mustMarshal(t, undo)))
	saved, err = ti.store.FindPost(post.ID)
	require.NoError(t, err)
	assert.False(t, saved.Deleted)
}

func TestReceiveDelete_RejectsForeignActor(t *testing.T) {
	ti := newTestInbox(t)
	community, _ := seedRemoteCommunity(t, ti.store)
	intruder := &storage.Person{
		ID:     "https://elsewhere.tld/u/mallory",
		Name:   "mallory",
		Domain: "elsewhere.tld",
	}
	require.NoError(t, ti.store.SavePerson(intruder))
	post := &storage.Post{
		ID:          "https://remote.tld/post/1",
		CreatorID:   "https://remote.tld/u/alice",
		CommunityID: community.ID,
	}
	require.NoError(t, ti.store.SavePost(post))

	to := []string{activity.PublicAddress, community.FollowersURL}
	del := activity.NewDelete("elsewhere.tld", intruder.ID, post.ID, to, nil)

	err := ti.inbox.ReceiveActivity(context.Background(), mustMarshal(t, del))
	assert.ErrorIs(t, err, ErrVerification)

	saved, err := ti.store.FindPost(post.ID)
	require.NoError(t, err)
	assert.False(t, saved.Deleted, "a failed delete must not change state")
}

func TestReceiveDelete_ModActionCrossesDomains(t *testing.T) {
	ti := newTestInbox(t)
	community, _ := seedRemoteCommunity(t, ti.store)
	moderator := &storage.Person{
		ID:     "https://elsewhere.tld/u/mod",
		Name:   "mod",
		Domain: "elsewhere.tld",
	}
	require.NoError(t, ti.store.SavePerson(moderator))
	require.NoError(t, ti.store.SaveModerator(&storage.CommunityModerator{
		CommunityID: community.ID,
		PersonID:    moderator.ID,
	}))
	post := &storage.Post{
		ID:          "https://remote.tld/post/1",
		CreatorID:   "https://remote.tld/u/alice",
		CommunityID: community.ID,
	}
	require.NoError(t, ti.store.SavePost(post))

	reason := "spam"
	to := []string{activity.PublicAddress, community.FollowersURL}
	del := activity.NewDelete("elsewhere.tld", moderator.ID, post.ID, to, &reason)

	require.NoError(t, ti.inbox.ReceiveActivity(context.Background(), mustMarshal(t, del)))
	saved, err := ti.store.FindPost(post.ID)
	require.NoError(t, err)
	assert.True(t, saved.Deleted)
}

func TestReceiveDelete_ReasonRequiresModerator(t *testing.T) {
	ti := newTestInbox(t)
	community, person := seedRemoteCommunity(t, ti.store)
	post := &storage.Post{
		ID:          "https://remote.tld/post/1",
		CreatorID:   person.ID,
		CommunityID: community.ID,
	}
	require.NoError(t, ti.store.SavePost(post))

	// Even the creator cannot declare a mod removal without holding
	// moderator authority.
	reason := "spam"
	to := []string{activity.PublicAddress, community.FollowersURL}
	del := activity.NewDelete("remote.tld", person.ID, post.ID, to, &reason)

	err := ti.inbox.ReceiveActivity(context.Background(), mustMarshal(t, del))
	assert.ErrorIs(t, err, ErrVerification)

	saved, err := ti.store.FindPost(post.ID)
	require.NoError(t, err)
	assert.False(t, saved.Deleted)
}

func TestReceiveDelete_FollowersOnlyRejectsPublicDelivery(t *testing.T) {
	ti := newTestInbox(t)
	community, person := seedRemoteCommunity(t, ti.store)
	community.Visibility = storage.VisibilityFollowersOnly
	require.NoError(t, ti.store.SaveCommunity(community))
	post := &storage.Post{
		ID:          "https://remote.tld/post/1",
		CreatorID:   person.ID,
		CommunityID: community.ID,
	}
	require.NoError(t, ti.store.SavePost(post))

	del := activity.NewDelete("remote.tld", person.ID, post.ID,
		[]string{activity.PublicAddress, community.FollowersURL}, nil)
	err := ti.inbox.ReceiveActivity(context.Background(), mustMarshal(t, del))
	assert.ErrorIs(t, err, ErrVerification)

	del = activity.NewDelete("remote.tld", person.ID, post.ID,
		[]string{community.FollowersURL}, nil)
	require.NoError(t, ti.inbox.ReceiveActivity(context.Background(), mustMarshal(t, del)))
}

func TestReceiveDelete_PersonWithPurge(t *testing.T) {
	ti := newTestInbox(t)
	person := &storage.Person{
		ID:     "https://remote.tld/u/alice",
		Name:   "alice",
		Domain: "remote.tld",
	}
	require.NoError(t, ti.store.SavePerson(person))
	require.NoError(t, ti.store.SavePost(&storage.Post{
		ID:        "https://remote.tld/post/1",
		CreatorID: person.ID,
	}))
	require.NoError(t, ti.store.SaveComment(&storage.Comment{
		ID:        "https://remote.tld/comment/1",
		CreatorID: person.ID,
	}))

	removeData := true
	del := activity.NewDelete("remote.tld", person.ID, person.ID,
		[]string{activity.PublicAddress}, nil)
	del.RemoveData = &removeData

	require.NoError(t, ti.inbox.ReceiveActivity(context.Background(), mustMarshal(t, del)))

	saved, err := ti.store.FindPerson(person.ID)
	require.NoError(t, err)
	assert.True(t, saved.Deleted)
	post, err := ti.store.FindPost("https://remote.tld/post/1")
	require.NoError(t, err)
	assert.True(t, post.Deleted)
	comment, err := ti.store.FindComment("https://remote.tld/comment/1")
	require.NoError(t, err)
	assert.True(t, comment.Deleted)
}

func TestReceiveDelete_PersonRequiresSelfAndPublic(t *testing.T) {
	ti := newTestInbox(t)
	alice := &storage.Person{ID: "https://remote.tld/u/alice", Name: "alice", Domain: "remote.tld"}
	bob := &storage.Person{ID: "https://remote.tld/u/bob", Name: "bob", Domain: "remote.tld"}
	require.NoError(t, ti.store.SavePerson(alice))
	require.NoError(t, ti.store.SavePerson(bob))

	// Same domain is not enough; only the person may delete themselves.
	del := activity.NewDelete("remote.tld", bob.ID, alice.ID,
		[]string{activity.PublicAddress}, nil)
	err := ti.inbox.ReceiveActivity(context.Background(), mustMarshal(t, del))
	assert.ErrorIs(t, err, ErrVerification)

	// Non-public addressing is rejected.
	del = activity.NewDelete("remote.tld", alice.ID, alice.ID,
		[]string{bob.ID}, nil)
	err = ti.inbox.ReceiveActivity(context.Background(), mustMarshal(t, del))
	assert.ErrorIs(t, err, ErrVerification)
}

func TestReceiveDelete_PrivateMessage(t *testing.T) {
	ti := newTestInbox(t)
	sender := &storage.Person{ID: "https://remote.tld/u/alice", Name: "alice", Domain: "remote.tld"}
	require.NoError(t, ti.store.SavePerson(sender))
	pm := &storage.PrivateMessage{
		ID:          "https://remote.tld/pm/1",
		CreatorID:   sender.ID,
		RecipientID: "https://" + testHost + "/u/bob",
	}
	require.NoError(t, ti.store.SavePrivateMessage(pm))

	// Deletion of a private message is addressed to the recipient, not
	// the public collection, and must come from the message's own domain.
	del := activity.NewDelete("remote.tld", sender.ID, pm.ID, []string{pm.RecipientID}, nil)
	require.NoError(t, ti.inbox.ReceiveActivity(context.Background(), mustMarshal(t, del)))

	saved, err := ti.store.FindPrivateMessage(pm.ID)
	require.NoError(t, err)
	assert.True(t, saved.Deleted)

	undo := activity.NewUndoDelete("remote.tld", sender.ID, pm.ID, []string{pm.RecipientID}, nil)
	require.NoError(t, ti.inbox.ReceiveActivity(context.Background(), mustMarshal(t, undo)))
	saved, err = ti.store.FindPrivateMessage(pm.ID)
	require.NoError(t, err)
	assert.False(t, saved.Deleted)

	intruder := &storage.Person{ID: "https://elsewhere.tld/u/mallory", Name: "mallory", Domain: "elsewhere.tld"}
	require.NoError(t, ti.store.SavePerson(intruder))
	del = activity.NewDelete("elsewhere.tld", intruder.ID, pm.ID, []string{pm.RecipientID}, nil)
	err = ti.inbox.ReceiveActivity(context.Background(), mustMarshal(t, del))
	assert.ErrorIs(t, err, ErrVerification)
}

func TestReceiveUndo_PersonDeletionIrreversible(t *testing.T) {
	ti := newTestInbox(t)
	person := &storage.Person{
		ID:      "https://remote.tld/u/alice",
		Name:    "alice",
		Domain:  "remote.tld",
		Deleted: false,
	}
	require.NoError(t, ti.store.SavePerson(person))

	undo := activity.NewUndoDelete("remote.tld", person.ID, person.ID,
		[]string{activity.PublicAddress}, nil)
	err := ti.inbox.ReceiveActivity(context.Background(), mustMarshal(t, undo))
	assert.ErrorIs(t, err, fetch.ErrUnreachable)
}

func TestReceiveUndo_RejectsActorMismatchWithInnerDelete(t *testing.T) {
	ti := newTestInbox(t)
	community, person := seedRemoteCommunity(t, ti.store)
	post := &storage.Post{
		ID:          "https://remote.tld/post/1",
		CreatorID:   person.ID,
		CommunityID: community.ID,
		Deleted:     true,
	}
	require.NoError(t, ti.store.SavePost(post))

	to := []string{activity.PublicAddress, community.FollowersURL}
	undo := activity.NewUndoDelete("remote.tld", person.ID, post.ID, to, nil)
	undo.Actor = "https://elsewhere.tld/u/mallory"

	err := ti.inbox.ReceiveActivity(context.Background(), mustMarshal(t, undo))
	assert.ErrorIs(t, err, ErrVerification)
	saved, err := ti.store.FindPost(post.ID)
	require.NoError(t, err)
	assert.True(t, saved.Deleted)
}

// Deleting a local community re-broadcasts the Delete to its remote
// followers before the local write.
func TestReceiveDelete_LocalCommunityRebroadcasts(t *testing.T) {
	ti := newTestInbox(t)

	received := make(chan []byte, 1)
	followerServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer followerServer.Close()

	community := &storage.Community{
		ID:           "https://" + testHost + "/c/books",
		Name:         "books",
		Domain:       testHost,
		Local:        true,
		FollowersURL: "https://" + testHost + "/c/books/followers",
		Visibility:   storage.VisibilityPublic,
	}
	require.NoError(t, ti.store.SaveCommunity(community))
	admin := &storage.Person{
		ID:     "https://" + testHost + "/u/admin",
		Name:   "admin",
		Domain: testHost,
		Local:  true,
		Admin:  true,
	}
	require.NoError(t, ti.store.SavePerson(admin))
	follower := &storage.Person{
		ID:     "https://remote.tld/u/fan",
		Name:   "fan",
		Domain: "remote.tld",
		Inbox:  followerServer.URL + "/inbox",
	}
	require.NoError(t, ti.store.SavePerson(follower))
	require.NoError(t, ti.store.SaveFollower(&storage.CommunityFollower{
		CommunityID: community.ID,
		FollowerID:  follower.ID,
		Status:      storage.FollowAccepted,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ti.pipeline.Run(ctx)

	del := activity.NewDelete(testHost, admin.ID, community.ID,
		[]string{activity.PublicAddress, community.FollowersURL}, nil)
	require.NoError(t, ti.inbox.ReceiveActivity(ctx, mustMarshal(t, del)))

	saved, err := ti.store.FindCommunity(community.ID)
	require.NoError(t, err)
	assert.True(t, saved.Deleted)

	ti.pipeline.Flush()
	var delivered activity.Delete
	require.NoError(t, json.Unmarshal(<-received, &delivered))
	assert.Equal(t, activity.DeleteType, delivered.Type)
	assert.Equal(t, community.ID, delivered.Object.ID)
}

// A failed re-broadcast must not stop the authoritative local write.
func TestReceiveDelete_LocalCommunityWriteSurvivesRebroadcastFailure(t *testing.T) {
	ti := newTestInbox(t)

	community := &storage.Community{
		ID:           "https://" + testHost + "/c/books",
		Name:         "books",
		Domain:       testHost,
		Local:        true,
		FollowersURL: "https://" + testHost + "/c/books/followers",
		Visibility:   storage.VisibilityPublic,
	}
	require.NoError(t, ti.store.SaveCommunity(community))
	admin := &storage.Person{
		ID:     "https://" + testHost + "/u/admin",
		Name:   "admin",
		Domain: testHost,
		Local:  true,
		Admin:  true,
	}
	require.NoError(t, ti.store.SavePerson(admin))

	// No Run loop, so filling the queue makes the re-broadcast enqueue
	// fail.
	for i := 0; i < queueDepth; i++ {
		require.NoError(t, ti.pipeline.Queue(&stubItem{}))
	}

	del := activity.NewDelete(testHost, admin.ID, community.ID,
		[]string{activity.PublicAddress, community.FollowersURL}, nil)
	require.NoError(t, ti.inbox.ReceiveActivity(context.Background(), mustMarshal(t, del)))

	saved, err := ti.store.FindCommunity(community.ID)
	require.NoError(t, err)
	assert.True(t, saved.Deleted)
}

func TestReceiveDelete_UnknownObject(t *testing.T) {
	ti := newTestInbox(t)
	del := activity.NewDelete("remote.tld", "https://remote.tld/u/alice",
		"https://remote.tld/post/unknown", []string{activity.PublicAddress}, nil)
	err := ti.inbox.ReceiveActivity(context.Background(), mustMarshal(t, del))
	assert.ErrorIs(t, err, fetch.ErrNotFound)
}
