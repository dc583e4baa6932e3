package server

import (
	"context"
	"fmt"

	"github.com/fedforumdev/fedforum/server/activity"
	"github.com/fedforumdev/fedforum/server/fetch"
	"github.com/fedforumdev/fedforum/server/telemetry"
)

// receiveDelete verifies and applies a Delete (deleted=true) or the
// inner Delete of an Undo (deleted=false). Processing for the same
// object is serialized; verification failure drops the activity with no
// partial state change.
func (ai *ActivityInbox) receiveDelete(ctx context.Context, del *activity.Delete, deleted bool) error {
	telemetry.Increment("delete_requests", 1)

	unlock := ai.locks.lock(del.Object.ID)
	defer unlock()

	object, err := ai.verifyDelete(ctx, del)
	if err != nil {
		return err
	}
	return ai.applyDelete(ctx, del, object, deleted)
}

// verifyDelete runs the per-kind authorization chain, failing fast.
func (ai *ActivityInbox) verifyDelete(ctx context.Context, del *activity.Delete) (DeletableObjects, error) {
	object, err := readDeletable(ai.store, del.Object.ID)
	if err != nil {
		return DeletableObjects{}, err
	}

	switch {
	case object.Community != nil:
		community := object.Community
		if err := verifyVisibility(del.To, community); err != nil {
			return DeletableObjects{}, err
		}
		if community.Local {
			// Only checked for a local community; in the remote case this
			// would try to fetch the community that is being deleted.
			if _, err := ai.verifyPersonInCommunity(ctx, del.Actor, community); err != nil {
				return DeletableObjects{}, err
			}
		}
		// community deletion is always a mod (or admin) action
		if err := ai.verifyModAction(ctx, del.Actor, community); err != nil {
			return DeletableObjects{}, err
		}

	case object.Person != nil:
		if err := verifyIsPublic(del.To); err != nil {
			return DeletableObjects{}, err
		}
		if _, err := ai.verifyPerson(ctx, del.Actor); err != nil {
			return DeletableObjects{}, err
		}
		if err := verifyURLsMatch(object.Person.ID, del.Object.ID); err != nil {
			return DeletableObjects{}, err
		}
		if err := verifyURLsMatch(del.Actor, object.Person.ID); err != nil {
			return DeletableObjects{}, err
		}

	case object.Post != nil:
		if err := ai.verifyDeletePostOrComment(ctx, del, object.Post.CommunityID, object.Post.ID); err != nil {
			return DeletableObjects{}, err
		}

	case object.Comment != nil:
		if err := ai.verifyDeletePostOrComment(ctx, del, object.Comment.CommunityID, object.Comment.ID); err != nil {
			return DeletableObjects{}, err
		}

	case object.PrivateMessage != nil:
		if _, err := ai.verifyPerson(ctx, del.Actor); err != nil {
			return DeletableObjects{}, err
		}
		if err := verifyDomainsMatch(del.Actor, del.Object.ID); err != nil {
			return DeletableObjects{}, err
		}
	}
	return object, nil
}

func (ai *ActivityInbox) verifyDeletePostOrComment(ctx context.Context, del *activity.Delete, communityIRI, objectIRI string) error {
	community, err := ai.fetcher.DereferenceCommunity(ctx, communityIRI)
	if err != nil {
		return err
	}
	if err := verifyVisibility(del.To, community); err != nil {
		return err
	}
	if _, err := ai.verifyPersonInCommunity(ctx, del.Actor, community); err != nil {
		return err
	}
	if del.IsModAction() {
		return ai.verifyModAction(ctx, del.Actor, community)
	}
	// domain of object IRI and of its creator's IRI are identical, so
	// checking the former suffices for the self-action rule
	return verifyDomainsMatch(del.Actor, objectIRI)
}

// applyDelete writes the deletion or restore, idempotently: current
// state is compared to desired state before writing, so redelivery is a
// no-op that is still acknowledged.
func (ai *ActivityInbox) applyDelete(ctx context.Context, del *activity.Delete, object DeletableObjects, deleted bool) error {
	switch {
	case object.Community != nil:
		community := object.Community
		if community.Local {
			// A local community is the authoritative origin for its own
			// deletion: re-broadcast to its followers. The local write
			// below stays authoritative; the re-broadcast is best-effort.
			if actor, err := ai.fetcher.DereferencePerson(ctx, del.Actor); err != nil {
				telemetry.Error(err, "resolving actor for re-broadcast of delete of [%s]", community.ID)
			} else if err := ai.outbox.SendDeleteInCommunity(actor, community, object, nil, deleted); err != nil {
				telemetry.Error(err, "re-broadcasting delete of local community [%s]", community.ID)
			}
		}
		if community.Deleted != deleted {
			community.Deleted = deleted
			return ai.store.SaveCommunity(community)
		}

	case object.Person != nil:
		if !deleted {
			// Person deletion is broadcast to every instance and cannot
			// be reversed over federation.
			return fmt.Errorf("%w: undo of person deletion", fetch.ErrUnreachable)
		}
		person := object.Person
		if del.RemoveData != nil && *del.RemoveData {
			if err := ai.store.PurgePersonContent(person.ID); err != nil {
				return err
			}
		}
		if !person.Deleted {
			person.Deleted = true
			return ai.store.SavePerson(person)
		}

	case object.Post != nil:
		if object.Post.Deleted != deleted {
			object.Post.Deleted = deleted
			return ai.store.SavePost(object.Post)
		}

	case object.Comment != nil:
		if object.Comment.Deleted != deleted {
			object.Comment.Deleted = deleted
			return ai.store.SaveComment(object.Comment)
		}

	case object.PrivateMessage != nil:
		if object.PrivateMessage.Deleted != deleted {
			object.PrivateMessage.Deleted = deleted
			return ai.store.SavePrivateMessage(object.PrivateMessage)
		}
	}
	return nil
}
