package server

import (
	"context"
	"fmt"
	"net/url"

	"github.com/fedforumdev/fedforum/server/activity"
	"github.com/fedforumdev/fedforum/server/storage"
)

const publicAddress = activity.PublicAddress

// Verification helpers for inbound activities. Each returns a wrapped
// ErrVerification on failure so the inbox can drop the activity and log
// one consistent taxonomy.

func verifyDomainsMatch(a, b string) error {
	ua, err := url.Parse(a)
	if err != nil {
		return fmt.Errorf("%w: bad IRI [%s]", ErrVerification, a)
	}
	ub, err := url.Parse(b)
	if err != nil {
		return fmt.Errorf("%w: bad IRI [%s]", ErrVerification, b)
	}
	if ua.Host == "" || ua.Host != ub.Host {
		return fmt.Errorf("%w: domains of [%s] and [%s] differ", ErrVerification, a, b)
	}
	return nil
}

func verifyURLsMatch(a, b string) error {
	if a != b {
		return fmt.Errorf("%w: urls [%s] and [%s] differ", ErrVerification, a, b)
	}
	return nil
}

// verifyIsPublic requires the activity to be addressed to the public
// collection.
func verifyIsPublic(to []string) error {
	for _, t := range to {
		if t == publicAddress {
			return nil
		}
	}
	return fmt.Errorf("%w: activity is not public", ErrVerification)
}

// verifyVisibility checks that the declared recipients are consistent
// with the community's visibility, rejecting spoofed broadcast scope.
func verifyVisibility(to []string, community *storage.Community) error {
	isPublic := false
	for _, t := range to {
		if t == publicAddress {
			isPublic = true
		}
	}
	switch community.Visibility {
	case storage.VisibilityFollowersOnly:
		if isPublic {
			return fmt.Errorf("%w: public delivery for followers-only community [%s]", ErrVerification, community.ID)
		}
	default:
		if !isPublic {
			return fmt.Errorf("%w: non-public delivery for public community [%s]", ErrVerification, community.ID)
		}
	}
	return nil
}

// verifyPerson dereferences the acting person and rejects deleted
// accounts.
func (ai *ActivityInbox) verifyPerson(ctx context.Context, actorIRI string) (*storage.Person, error) {
	person, err := ai.fetcher.DereferencePerson(ctx, actorIRI)
	if err != nil {
		return nil, err
	}
	if person.Deleted {
		return nil, fmt.Errorf("%w: actor [%s] is deleted", ErrVerification, actorIRI)
	}
	return person, nil
}

// verifyPersonInCommunity checks the acting person is known to the
// community context: the actor must dereference, not be deleted, and
// the community itself must still exist for new activity.
func (ai *ActivityInbox) verifyPersonInCommunity(ctx context.Context, actorIRI string, community *storage.Community) (*storage.Person, error) {
	person, err := ai.verifyPerson(ctx, actorIRI)
	if err != nil {
		return nil, err
	}
	if community.Removed {
		return nil, fmt.Errorf("%w: community [%s] is removed", ErrVerification, community.ID)
	}
	return person, nil
}

// verifyModAction requires the actor to hold moderator or admin
// authority over the community.
func (ai *ActivityInbox) verifyModAction(ctx context.Context, actorIRI string, community *storage.Community) error {
	person, err := ai.verifyPerson(ctx, actorIRI)
	if err != nil {
		return err
	}
	if person.Admin {
		return nil
	}
	isMod, err := ai.store.IsModerator(community.ID, person.ID)
	if err != nil {
		return err
	}
	if !isMod {
		return fmt.Errorf("%w: [%s] is not a moderator of [%s]", ErrVerification, actorIRI, community.ID)
	}
	return nil
}

// generateTo builds the capability-checked recipient list from the
// community's visibility.
func generateTo(community *storage.Community) []string {
	if community.Visibility == storage.VisibilityFollowersOnly {
		return []string{community.FollowersURL}
	}
	return []string{publicAddress, community.FollowersURL}
}
