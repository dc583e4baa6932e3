package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fedforumdev/fedforum/server/activity"
	"github.com/fedforumdev/fedforum/server/fetch"
	"github.com/fedforumdev/fedforum/server/storage"
	"github.com/fedforumdev/fedforum/server/telemetry"
)

// receiveFollow handles a Follow aimed at one of our communities. The
// relationship is saved as pending and an Accept (or Reject, when the
// community is gone or removed) goes back through the pipeline; pending
// flips to accepted only once the Accept is delivered.
func (ai *ActivityInbox) receiveFollow(ctx context.Context, follow *activity.Follow) error {
	telemetry.Increment("follow_requests", 1)

	if follow.ID == "" {
		// The follow id is what the Accept echoes back, so the remote
		// server knows what we accepted. Without it there is nothing
		// useful to respond to.
		return fmt.Errorf("%w: follow without id", ErrVerification)
	}

	community, err := ai.store.FindCommunity(follow.Object.ID)
	if err != nil {
		return err
	}
	if community == nil || !community.Local {
		return fmt.Errorf("%w: follow for unknown community [%s]", fetch.ErrNotFound, follow.Object.ID)
	}

	follower, err := ai.verifyPerson(ctx, follow.Actor)
	if err != nil {
		return err
	}

	responseType := activity.AcceptType
	if community.Deleted || community.Removed {
		responseType = activity.RejectType
	}

	var saved storage.CommunityFollower
	if responseType == activity.AcceptType {
		existing, err := ai.store.FindFollower(community.ID, follower.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			// Already following. The sender still expects a response, in
			// case the earlier Accept never arrived.
			saved = *existing
		} else {
			saved = storage.CommunityFollower{
				CommunityID: community.ID,
				FollowerID:  follower.ID,
				RequestID:   follow.ID,
				Status:      storage.FollowPending,
			}
			if err := ai.store.SaveFollower(&saved); err != nil {
				return err
			}
		}
	}

	return ai.outbox.pipeline.Queue(&followResponse{
		inbox:        ai,
		follow:       *follow,
		follower:     saved,
		community:    community,
		inboxURL:     sharedInboxOrInbox(follower.SharedInbox, follower.Inbox),
		responseType: responseType,
	})
}

// receiveUndoFollow tears down a follow relationship.
func (ai *ActivityInbox) receiveUndoFollow(ctx context.Context, actorIRI string, follow *activity.Follow) error {
	telemetry.Increment("undo_follow_requests", 1)

	if err := verifyURLsMatch(actorIRI, follow.Actor); err != nil {
		return err
	}
	community, err := ai.store.FindCommunity(follow.Object.ID)
	if err != nil {
		return err
	}
	if community == nil {
		return fmt.Errorf("%w: unfollow for unknown community [%s]", fetch.ErrNotFound, follow.Object.ID)
	}
	return ai.store.DeleteFollower(community.ID, actorIRI)
}

// receiveRejectFollow handles a remote community declining a follow one
// of our local persons sent. The embedded Follow locates the
// relationship to tear down. An absent to list is tolerated.
func (ai *ActivityInbox) receiveRejectFollow(ctx context.Context, reject *activity.RejectFollow) error {
	telemetry.Increment("reject_requests", 1)

	if err := verifyURLsMatch(reject.Actor, reject.Object.Object.ID); err != nil {
		return err
	}
	person, err := ai.store.FindPerson(reject.Object.Actor)
	if err != nil {
		return err
	}
	if person == nil || !person.Local {
		return fmt.Errorf("%w: reject for unknown person [%s]", fetch.ErrNotFound, reject.Object.Actor)
	}
	return ai.store.DeleteFollower(reject.Actor, person.ID)
}

// followResponse is the queued Accept or Reject answering an inbound
// Follow.
type followResponse struct {
	inbox        *ActivityInbox
	follow       activity.Follow
	follower     storage.CommunityFollower
	community    *storage.Community
	inboxURL     string
	responseType string
}

func (f *followResponse) String() string {
	return fmt.Sprintf("Follow %s to %s", f.responseType, f.follow.Actor)
}

func (f *followResponse) Prepare(ctx context.Context) ([]*http.Request, error) {
	host := f.inbox.outbox.host
	var payload any
	if f.responseType == activity.AcceptType {
		payload = activity.NewAcceptFollow(host, f.community.ID, f.follow)
	} else {
		payload = activity.NewRejectFollow(host, f.community.ID, f.follow)
	}
	r, err := newActivityRequest(ctx, f.inboxURL, jsonBytes(payload))
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", f.responseType, err)
	}
	if f.community.PrivateKeyPEM != "" && !f.inbox.outbox.sendUnsigned {
		key, err := parsePrivateKey(f.community.PrivateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("loading community key: %w", err)
		}
		if err := sign(key, f.community.ID+"#main-key", r); err != nil {
			return nil, fmt.Errorf("signing %s: %w", f.responseType, err)
		}
	}
	return []*http.Request{r}, nil
}

func (f *followResponse) Receive(resp *http.Response) {
	telemetry.Trace("received response from %s: %d", f.responseType, resp.StatusCode)
	// Inbox POSTs commonly answer 202, so any 2xx counts as delivered.
	delivered := resp.StatusCode >= 200 && resp.StatusCode <= 299
	if delivered && f.responseType == activity.AcceptType {
		telemetry.Increment("accept_responses", 1)
		f.follower.Status = storage.FollowAccepted
		if err := f.inbox.store.SaveFollower(&f.follower); err != nil {
			// This leaves the follow marked pending locally while the
			// remote server believes it was accepted.
			telemetry.Error(err, "database error")
		}
	}
}
