package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fedforumdev/fedforum/server/activity"
	"github.com/fedforumdev/fedforum/server/fetch"
	"github.com/fedforumdev/fedforum/server/storage"
	"github.com/fedforumdev/fedforum/server/telemetry"
)

type targetsKind int

const (
	targetsEmpty targetsKind = iota
	targetsInbox
	targetsAllInstances
	targetsFollowers
)

// SendTargets is the fan-out policy for one outbound activity. It is
// constructed at enqueue time but expanded into concrete inbox URLs on
// the pipeline worker at send time.
type SendTargets struct {
	kind        targetsKind
	inbox       string
	communityID string
}

func EmptyTargets() SendTargets      { return SendTargets{kind: targetsEmpty} }
func ToInbox(url string) SendTargets { return SendTargets{kind: targetsInbox, inbox: url} }
func ToAllInstances() SendTargets    { return SendTargets{kind: targetsAllInstances} }

func ToCommunityFollowers(iri string) SendTargets {
	return SendTargets{kind: targetsFollowers, communityID: iri}
}

// OutboxStore is the slice of storage fan-out expansion reads from.
type OutboxStore interface {
	FindPerson(iri string) (*storage.Person, error)
	ListInstances() ([]storage.Instance, error)
	ListFollowers(communityIRI string) ([]storage.Person, error)
}

// ActivityOutbox builds outbound activities and hands them to the
// pipeline. Enqueue failures surface to the caller; everything after is
// fire-and-forget relative to the originating request.
type ActivityOutbox struct {
	host         string
	store        OutboxStore
	pipeline     *OutputPipeline
	sendUnsigned bool
}

// SendDeleteInCommunity federates a delete (deleted=true) or its undo
// (deleted=false) for any deletable object in a community. A set reason
// marks a mod action. Exposed to the API layer.
func (ao *ActivityOutbox) SendDeleteInCommunity(actor *storage.Person, community *storage.Community, object DeletableObjects, reason *string, deleted bool) error {
	to := generateTo(community)
	var payload any
	var kind string
	if deleted {
		payload = activity.NewDelete(ao.host, actor.ID, object.IRI(), to, reason)
		kind = activity.DeleteType
	} else {
		payload = activity.NewUndoDelete(ao.host, actor.ID, object.IRI(), to, reason)
		kind = activity.UndoType
	}
	// A local community announces to its followers; for a remote one the
	// community inbox forwards on our behalf.
	targets := ToCommunityFollowers(community.ID)
	if !community.Local {
		targets = ToInbox(sharedInboxOrInbox(community.SharedInbox, community.Inbox))
	}
	return ao.queue(fmt.Sprintf("%s of %s", kind, object.IRI()), payload, targets, actor)
}

// SendDeleteUser broadcasts deletion of a person to every known
// instance. removeData additionally requests purging the person's
// contributions. Exposed to the API layer.
func (ao *ActivityOutbox) SendDeleteUser(person *storage.Person, removeData bool) error {
	del := activity.NewDelete(ao.host, person.ID, person.ID, []string{publicAddress}, nil)
	del.RemoveData = &removeData
	return ao.queue(fmt.Sprintf("Delete of person %s", person.ID), del, ToAllInstances(), person)
}

// SendDeletePrivateMessage tells the recipient's server about deletion
// or restore of a private message.
func (ao *ActivityOutbox) SendDeletePrivateMessage(actor *storage.Person, pm *storage.PrivateMessage, deleted bool) error {
	recipient, err := ao.store.FindPerson(pm.RecipientID)
	if err != nil {
		return err
	}
	if recipient == nil {
		return fmt.Errorf("%w: recipient [%s]", fetch.ErrNotFound, pm.RecipientID)
	}
	to := []string{recipient.ID}
	var payload any
	if deleted {
		payload = activity.NewDelete(ao.host, actor.ID, pm.ID, to, nil)
	} else {
		payload = activity.NewUndoDelete(ao.host, actor.ID, pm.ID, to, nil)
	}
	inbox := sharedInboxOrInbox(recipient.SharedInbox, recipient.Inbox)
	return ao.queue(fmt.Sprintf("Delete of pm %s", pm.ID), payload, ToInbox(inbox), actor)
}

// SendReport flags a post or comment to the community moderators on the
// community's instance.
func (ao *ActivityOutbox) SendReport(actor *storage.Person, community *storage.Community, objectIRI, reason string) error {
	report := activity.NewReport(ao.host, actor.ID, objectIRI, community.ID, reason)
	inbox := sharedInboxOrInbox(community.SharedInbox, community.Inbox)
	return ao.queue(fmt.Sprintf("Flag of %s", objectIRI), report, ToInbox(inbox), actor)
}

func (ao *ActivityOutbox) queue(desc string, payload any, targets SendTargets, signer *storage.Person) error {
	item := &queuedActivity{
		outbox:     ao,
		desc:       desc,
		payload:    payload,
		targets:    targets,
		privKeyPEM: signer.PrivateKeyPEM,
		pubKeyID:   signer.ID + "#main-key",
	}
	return ao.pipeline.Queue(item)
}

// expandTargets resolves a fan-out policy into a deduplicated list of
// inbox URLs, preferring shared inboxes.
func (ao *ActivityOutbox) expandTargets(targets SendTargets) ([]string, error) {
	switch targets.kind {
	case targetsEmpty:
		return nil, nil
	case targetsInbox:
		return []string{targets.inbox}, nil
	case targetsAllInstances:
		instances, err := ao.store.ListInstances()
		if err != nil {
			return nil, err
		}
		inboxes := make([]string, 0, len(instances))
		for _, inst := range instances {
			if inst.SharedInbox != "" {
				inboxes = append(inboxes, inst.SharedInbox)
			}
		}
		return dedupe(inboxes), nil
	case targetsFollowers:
		followers, err := ao.store.ListFollowers(targets.communityID)
		if err != nil {
			return nil, err
		}
		inboxes := make([]string, 0, len(followers))
		for _, follower := range followers {
			if follower.Local {
				continue
			}
			inboxes = append(inboxes, sharedInboxOrInbox(follower.SharedInbox, follower.Inbox))
		}
		return dedupe(inboxes), nil
	}
	return nil, fmt.Errorf("unknown send targets kind %d", targets.kind)
}

func sharedInboxOrInbox(shared, inbox string) string {
	if shared != "" {
		return shared
	}
	return inbox
}

func dedupe(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// queuedActivity is one outbound activity waiting on the pipeline.
type queuedActivity struct {
	outbox     *ActivityOutbox
	desc       string
	payload    any
	targets    SendTargets
	privKeyPEM string
	pubKeyID   string
}

func (q *queuedActivity) String() string {
	return q.desc
}

func (q *queuedActivity) Prepare(ctx context.Context) ([]*http.Request, error) {
	inboxes, err := q.outbox.expandTargets(q.targets)
	if err != nil {
		return nil, fmt.Errorf("expanding targets: %w", err)
	}
	body, err := json.Marshal(q.payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling activity: %w", err)
	}
	requests := make([]*http.Request, 0, len(inboxes))
	for _, inbox := range inboxes {
		r, err := newActivityRequest(ctx, inbox, body)
		if err != nil {
			telemetry.Error(err, "creating request for %s", inbox)
			continue
		}
		if q.privKeyPEM != "" && !q.outbox.sendUnsigned {
			key, err := parsePrivateKey(q.privKeyPEM)
			if err != nil {
				return nil, fmt.Errorf("loading signing key: %w", err)
			}
			if err := sign(key, q.pubKeyID, r); err != nil {
				return nil, fmt.Errorf("signing request: %w", err)
			}
		}
		requests = append(requests, r)
	}
	return requests, nil
}

func (q *queuedActivity) Receive(resp *http.Response) {
	telemetry.Trace("delivery of %s returned %d", q.desc, resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		telemetry.Increment("delivery_failures", 1)
	}
}

func newActivityRequest(ctx context.Context, inbox string, body []byte) (*http.Request, error) {
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, inbox, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	r.Header.Set("Content-Type", activity.ContentType)
	r.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	r.Header.Set("Host", r.URL.Host)
	return r, nil
}

func jsonBytes(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
