package server

import (
	"fmt"

	"github.com/fedforumdev/fedforum/server/fetch"
	"github.com/fedforumdev/fedforum/server/storage"
)

// DeletableObjects is a closed union over every kind that can be the
// object of a Delete or Undo Delete. Exactly one field is set. It exists
// so delete handling has a single polymorphic path instead of five, and
// it is never persisted itself.
type DeletableObjects struct {
	Community      *storage.Community
	Person         *storage.Person
	Post           *storage.Post
	Comment        *storage.Comment
	PrivateMessage *storage.PrivateMessage
}

// IRI returns the identifier of whichever member is set.
func (d DeletableObjects) IRI() string {
	switch {
	case d.Community != nil:
		return d.Community.ID
	case d.Person != nil:
		return d.Person.ID
	case d.Post != nil:
		return d.Post.ID
	case d.Comment != nil:
		return d.Comment.ID
	case d.PrivateMessage != nil:
		return d.PrivateMessage.ID
	}
	return ""
}

// readDeletable resolves an IRI against the local stores only. IRIs are
// not self-describing as to type, so each store is checked in a fixed
// order and the first hit wins: community, person, post, comment,
// private message.
func readDeletable(store storage.Database, iri string) (DeletableObjects, error) {
	if c, err := store.FindCommunity(iri); err != nil {
		return DeletableObjects{}, err
	} else if c != nil {
		return DeletableObjects{Community: c}, nil
	}
	if p, err := store.FindPerson(iri); err != nil {
		return DeletableObjects{}, err
	} else if p != nil {
		return DeletableObjects{Person: p}, nil
	}
	if p, err := store.FindPost(iri); err != nil {
		return DeletableObjects{}, err
	} else if p != nil {
		return DeletableObjects{Post: p}, nil
	}
	if c, err := store.FindComment(iri); err != nil {
		return DeletableObjects{}, err
	} else if c != nil {
		return DeletableObjects{Comment: c}, nil
	}
	if pm, err := store.FindPrivateMessage(iri); err != nil {
		return DeletableObjects{}, err
	} else if pm != nil {
		return DeletableObjects{PrivateMessage: pm}, nil
	}
	return DeletableObjects{}, fmt.Errorf("%w: no deletable object at [%s]", fetch.ErrNotFound, iri)
}
