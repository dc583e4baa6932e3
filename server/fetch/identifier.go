package fetch

import (
	"context"
	"fmt"
	"strings"

	"github.com/fedforumdev/fedforum/server/storage"
	"github.com/fedforumdev/fedforum/server/telemetry"
)

// Requester identifies who asked for a resolution. A nil *storage.Person
// means the request is anonymous; anonymous requests never trigger
// network fetches, so unauthenticated callers cannot drive arbitrary
// outbound requests.

// ResolvePersonIdentifier resolves a "name" or "name@domain" identifier
// to a person. Local lookup always runs first; webfinger discovery is
// attempted only for authenticated requesters.
func (f *Fetcher) ResolvePersonIdentifier(ctx context.Context, identifier string, requester *storage.Person, includeDeleted bool) (*storage.Person, error) {
	name, domain, remote := strings.Cut(identifier, "@")
	if !remote {
		person, err := f.store.FindPersonByName(identifier, includeDeleted)
		if err != nil {
			return nil, err
		}
		if person == nil {
			return nil, fmt.Errorf("%w: local person [%s]", ErrNotFound, identifier)
		}
		return person, nil
	}

	person, err := f.store.FindPersonByNameAndDomain(name, domain)
	if err != nil {
		return nil, err
	}
	if person != nil {
		return person, nil
	}
	if requester == nil {
		return nil, fmt.Errorf("%w: person [%s] unknown and requester is anonymous", ErrNotFound, identifier)
	}
	iri, err := f.DiscoverActor(ctx, strings.ToLower(identifier))
	if err != nil {
		return nil, err
	}
	telemetry.Trace("discovered person [%s] at [%s]", identifier, iri)
	return f.DereferencePerson(ctx, iri)
}

// ResolveCommunityIdentifier is the community counterpart of
// ResolvePersonIdentifier, with the same anonymous-requester guard.
func (f *Fetcher) ResolveCommunityIdentifier(ctx context.Context, identifier string, requester *storage.Person, includeDeleted bool) (*storage.Community, error) {
	name, domain, remote := strings.Cut(identifier, "@")
	if !remote {
		community, err := f.store.FindCommunityByName(identifier, includeDeleted)
		if err != nil {
			return nil, err
		}
		if community == nil {
			return nil, fmt.Errorf("%w: local community [%s]", ErrNotFound, identifier)
		}
		return community, nil
	}

	community, err := f.store.FindCommunityByNameAndDomain(name, domain)
	if err != nil {
		return nil, err
	}
	if community != nil {
		return community, nil
	}
	if requester == nil {
		return nil, fmt.Errorf("%w: community [%s] unknown and requester is anonymous", ErrNotFound, identifier)
	}
	iri, err := f.DiscoverActor(ctx, strings.ToLower(identifier))
	if err != nil {
		return nil, err
	}
	telemetry.Trace("discovered community [%s] at [%s]", identifier, iri)
	return f.DereferenceCommunity(ctx, iri)
}
