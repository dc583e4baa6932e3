package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/fedforumdev/fedforum/server/activity"
	"github.com/fedforumdev/fedforum/server/fetch"
	"github.com/fedforumdev/fedforum/server/storage"
	"github.com/fedforumdev/fedforum/server/telemetry"
)

// maxInboundBytes caps the size of an inbound activity document.
const maxInboundBytes = 100_000

// ActivityInbox receives federated activities, verifies them, and
// applies their effect to local state exactly once. Requests arrive
// signature-checked at this boundary; the handlers then re-check the
// claimed actor's domain and authorization.
type ActivityInbox struct {
	service        *ActivityService
	store          storage.Database
	fetcher        *fetch.Fetcher
	outbox         *ActivityOutbox
	acceptUnsigned bool

	locks objectLocks
}

// objectLocks serializes processing per object IRI so a Delete and an
// UndoDelete racing on the same object cannot lose updates. Activities
// on different objects still run concurrently. The map is append-only,
// which is fine for the cardinality of actively-contended objects.
type objectLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (l *objectLocks) lock(iri string) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[string]*sync.Mutex)
	}
	objMu, ok := l.m[iri]
	if !ok {
		objMu = &sync.Mutex{}
		l.m[iri] = objMu
	}
	l.mu.Unlock()
	objMu.Lock()
	return objMu.Unlock
}

// PostHTTP handles POST requests to the shared inbox. This is where the
// bulk of handling communications from remote federated servers happens.
func (ai *ActivityInbox) PostHTTP(w http.ResponseWriter, r *http.Request) {
	telemetry.Increment("post_requests", 1)

	if !ai.acceptUnsigned {
		if err := verify(ai.fetcher, r); err != nil {
			telemetry.Error(err, "signature unverified for %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		telemetry.Trace("signature verified for %s %s", r.Method, r.URL.Path)
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxInboundBytes))
	if err != nil {
		telemetry.Error(err, "reading body bytes")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	switch err := ai.ReceiveActivity(r.Context(), body); {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, errUnknownActivity):
		w.WriteHeader(http.StatusMethodNotAllowed)
	default:
		// Verification failures are terminal: drop, log, no retry. The
		// status code is informational only; there is no NACK channel.
		telemetry.Error(err, "dropping inbound activity")
		telemetry.Increment("dropped_activities", 1)
		w.WriteHeader(http.StatusBadRequest)
	}
}

var errUnknownActivity = errors.New("unrecognized activity type")

// ReceiveActivity verifies and applies one inbound activity document.
// Exposed to the inbox-receiving route.
func (ai *ActivityInbox) ReceiveActivity(ctx context.Context, body []byte) error {
	var envelope activity.Activity
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("unmarshaling activity: %w", err)
	}

	switch envelope.Type {
	case activity.DeleteType:
		var del activity.Delete
		if err := json.Unmarshal(body, &del); err != nil {
			return fmt.Errorf("unmarshaling Delete: %w", err)
		}
		return ai.receiveDelete(ctx, &del, true)

	case activity.UndoType:
		return ai.receiveUndo(ctx, body, &envelope)

	case activity.FlagType:
		var report activity.Report
		if err := json.Unmarshal(body, &report); err != nil {
			return fmt.Errorf("unmarshaling Flag: %w", err)
		}
		return ai.receiveReport(ctx, &report)

	case activity.FollowType:
		var follow activity.Follow
		if err := json.Unmarshal(body, &follow); err != nil {
			return fmt.Errorf("unmarshaling Follow: %w", err)
		}
		return ai.receiveFollow(ctx, &follow)

	case activity.RejectType:
		var reject activity.RejectFollow
		if err := json.Unmarshal(body, &reject); err != nil {
			return fmt.Errorf("unmarshaling Reject: %w", err)
		}
		return ai.receiveRejectFollow(ctx, &reject)

	default:
		telemetry.Trace("unrecognized activity type [%s]", envelope.Type)
		return fmt.Errorf("%w: [%s]", errUnknownActivity, envelope.Type)
	}
}

// receiveUndo dispatches an Undo by the type of its inner object:
// Undo Delete restores a deleted object, Undo Follow removes a follower.
func (ai *ActivityInbox) receiveUndo(ctx context.Context, body []byte, envelope *activity.Activity) error {
	objectMap, ok := envelope.Object.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%w: Undo with non-object object", errUnknownActivity)
	}
	switch objectMap[activity.TypeProperty] {
	case activity.DeleteType:
		var undo activity.UndoDelete
		if err := json.Unmarshal(body, &undo); err != nil {
			return fmt.Errorf("unmarshaling Undo Delete: %w", err)
		}
		if err := verifyURLsMatch(undo.Actor, undo.Object.Actor); err != nil {
			return err
		}
		return ai.receiveDelete(ctx, &undo.Object, false)
	case activity.FollowType:
		var undo struct {
			Actor  string          `json:"actor"`
			Object activity.Follow `json:"object"`
		}
		if err := json.Unmarshal(body, &undo); err != nil {
			return fmt.Errorf("unmarshaling Undo Follow: %w", err)
		}
		return ai.receiveUndoFollow(ctx, undo.Actor, &undo.Object)
	default:
		return fmt.Errorf("%w: Undo of [%v]", errUnknownActivity, objectMap[activity.TypeProperty])
	}
}
