package fetch

import (
	"context"
	"crypto"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/karlseguin/ccache/v3"
	"golang.org/x/sync/singleflight"

	"github.com/fedforumdev/fedforum/server/activity"
	"github.com/fedforumdev/fedforum/server/storage"
	"github.com/fedforumdev/fedforum/server/telemetry"
)

// maxBodyBytes caps how much of a remote document we will read.
const maxBodyBytes = 100_000

const actorCacheTTL = time.Hour

// Store is the slice of the storage layer the fetcher needs: local-first
// lookup and persist-after-fetch for every dereferenceable entity kind.
type Store interface {
	storage.Persons
	storage.Communities
	storage.Posts
	storage.Comments
	storage.PrivateMessages
	storage.Instances
}

// Fetcher resolves IRIs to local representations: check the persisted
// store first, then fetch over the network, validate the declared type,
// and persist before returning. Concurrent fetches of the same IRI are
// collapsed to a single request.
type Fetcher struct {
	store      Store
	client     *http.Client
	actorCache *ccache.Cache[activity.Actor]
	flight     singleflight.Group
}

func NewFetcher(store Store) *Fetcher {
	return &Fetcher{
		store:      store,
		client:     &http.Client{Timeout: 10 * time.Second},
		actorCache: ccache.New(ccache.Configure[activity.Actor]()),
	}
}

// fetchJSON performs a GET for an ActivityPub document. In-flight requests
// are deduplicated by IRI so a burst of dereferences costs one fetch.
func (f *Fetcher) fetchJSON(ctx context.Context, iri string) ([]byte, error) {
	v, err, _ := f.flight.Do(iri, func() (interface{}, error) {
		telemetry.Increment("remote_fetches", 1)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, iri, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrTransport, err)
		}
		req.Header.Set("Accept", activity.ContentType)
		resp, err := f.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrTransport, err)
		}
		defer resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
			return nil, fmt.Errorf("%w: %s", ErrNotFound, iri)
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, fmt.Errorf("%w: status %d from %s", ErrTransport, resp.StatusCode, iri)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %s", ErrTransport, iri, err)
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// FetchActor retrieves a remote actor document, with a short-lived cache
// in front so signature checks don't refetch the same actor repeatedly.
func (f *Fetcher) FetchActor(ctx context.Context, iri string) (*activity.Actor, error) {
	if item := f.actorCache.Get(iri); item != nil && !item.Expired() {
		actor := item.Value()
		return &actor, nil
	}
	body, err := f.fetchJSON(ctx, iri)
	if err != nil {
		return nil, err
	}
	var actor activity.Actor
	if err := json.Unmarshal(body, &actor); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling actor %s: %s", ErrTransport, iri, err)
	}
	switch actor.Type {
	case activity.PersonType, activity.GroupType, activity.ServiceType:
	default:
		return nil, fmt.Errorf("%w: %s is not an actor (%s)", ErrNotFound, iri, actor.Type)
	}
	f.actorCache.Set(iri, actor, actorCacheTTL)
	return &actor, nil
}

// GetActorPublicKey loads an actor's public key for http signature
// verification. The key id is the actor IRI plus a fragment.
func (f *Fetcher) GetActorPublicKey(keyID string) crypto.PublicKey {
	iri := keyID
	if u, err := url.Parse(keyID); err == nil {
		u.Fragment = ""
		iri = u.String()
	}
	actor, err := f.FetchActor(context.Background(), iri)
	if err != nil || actor.PublicKey == nil {
		telemetry.Trace("no public key for [%s]", keyID)
		return nil
	}
	block, _ := pem.Decode([]byte(actor.PublicKey.PublicKeyPEM))
	if block == nil {
		return nil
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		telemetry.Error(err, "parsing public key for [%s]", keyID)
		return nil
	}
	return key
}

// DereferencePerson resolves a person IRI, local-first.
func (f *Fetcher) DereferencePerson(ctx context.Context, iri string) (*storage.Person, error) {
	if p, err := f.store.FindPerson(iri); err != nil {
		return nil, err
	} else if p != nil {
		return p, nil
	}
	actor, err := f.FetchActor(ctx, iri)
	if err != nil {
		return nil, err
	}
	if actor.Type != activity.PersonType {
		return nil, fmt.Errorf("%w: %s is a %s, not a person", ErrNotFound, iri, actor.Type)
	}
	p := personFromActor(actor)
	if err := f.persistActor(p.Domain, actor.SharedInboxOrInbox(), func() error { return f.store.SavePerson(p) }); err != nil {
		return nil, err
	}
	return p, nil
}

// DereferenceCommunity resolves a community IRI, local-first.
func (f *Fetcher) DereferenceCommunity(ctx context.Context, iri string) (*storage.Community, error) {
	if c, err := f.store.FindCommunity(iri); err != nil {
		return nil, err
	} else if c != nil {
		return c, nil
	}
	actor, err := f.FetchActor(ctx, iri)
	if err != nil {
		return nil, err
	}
	if actor.Type != activity.GroupType {
		return nil, fmt.Errorf("%w: %s is a %s, not a community", ErrNotFound, iri, actor.Type)
	}
	c := communityFromActor(actor)
	if err := f.persistActor(c.Domain, actor.SharedInboxOrInbox(), func() error { return f.store.SaveCommunity(c) }); err != nil {
		return nil, err
	}
	return c, nil
}

// DereferencePost resolves a post IRI, local-first.
func (f *Fetcher) DereferencePost(ctx context.Context, iri string) (*storage.Post, error) {
	if p, err := f.store.FindPost(iri); err != nil {
		return nil, err
	} else if p != nil {
		return p, nil
	}
	body, err := f.fetchJSON(ctx, iri)
	if err != nil {
		return nil, err
	}
	var page activity.Page
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling page %s: %s", ErrTransport, iri, err)
	}
	if page.Type != activity.PageType {
		return nil, fmt.Errorf("%w: %s is a %s, not a post", ErrNotFound, iri, page.Type)
	}
	post := &storage.Post{
		ID:          iri,
		Title:       page.Name,
		CreatorID:   page.AttributedTo,
		CommunityID: page.Audience,
	}
	if err := f.store.SavePost(post); err != nil {
		return nil, err
	}
	return post, nil
}

// DereferenceComment resolves a comment IRI, local-first.
func (f *Fetcher) DereferenceComment(ctx context.Context, iri string) (*storage.Comment, error) {
	if c, err := f.store.FindComment(iri); err != nil {
		return nil, err
	} else if c != nil {
		return c, nil
	}
	body, err := f.fetchJSON(ctx, iri)
	if err != nil {
		return nil, err
	}
	var note activity.Note
	if err := json.Unmarshal(body, &note); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling note %s: %s", ErrTransport, iri, err)
	}
	if note.Type != activity.NoteType {
		return nil, fmt.Errorf("%w: %s is a %s, not a comment", ErrNotFound, iri, note.Type)
	}
	comment := &storage.Comment{
		ID:          iri,
		Content:     note.Content,
		CreatorID:   note.AttributedTo,
		PostID:      note.InReplyTo,
		CommunityID: note.Audience,
	}
	if err := f.store.SaveComment(comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// DereferencePrivateMessage resolves a private message locally. Private
// messages cannot be fetched from remote servers.
func (f *Fetcher) DereferencePrivateMessage(ctx context.Context, iri string) (*storage.PrivateMessage, error) {
	pm, err := f.store.FindPrivateMessage(iri)
	if err != nil {
		return nil, err
	}
	if pm == nil {
		return nil, fmt.Errorf("%w: private message %s", ErrUnreachable, iri)
	}
	return pm, nil
}

// PostOrComment is the result of resolving an IRI that may name either.
// Exactly one field is set.
type PostOrComment struct {
	Post    *storage.Post
	Comment *storage.Comment
}

func (pc PostOrComment) IRI() string {
	if pc.Post != nil {
		return pc.Post.ID
	}
	return pc.Comment.ID
}

// DereferencePostOrComment resolves an IRI that is not self-describing:
// posts are checked before comments locally, then the remote document's
// declared type decides.
func (f *Fetcher) DereferencePostOrComment(ctx context.Context, iri string) (*PostOrComment, error) {
	if p, err := f.store.FindPost(iri); err != nil {
		return nil, err
	} else if p != nil {
		return &PostOrComment{Post: p}, nil
	}
	if c, err := f.store.FindComment(iri); err != nil {
		return nil, err
	} else if c != nil {
		return &PostOrComment{Comment: c}, nil
	}
	body, err := f.fetchJSON(ctx, iri)
	if err != nil {
		return nil, err
	}
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling %s: %s", ErrTransport, iri, err)
	}
	switch probe.Type {
	case activity.PageType:
		post, err := f.DereferencePost(ctx, iri)
		if err != nil {
			return nil, err
		}
		return &PostOrComment{Post: post}, nil
	case activity.NoteType:
		comment, err := f.DereferenceComment(ctx, iri)
		if err != nil {
			return nil, err
		}
		return &PostOrComment{Comment: comment}, nil
	default:
		return nil, fmt.Errorf("%w: %s is a %s, not a post or comment", ErrNotFound, iri, probe.Type)
	}
}

// persistActor saves a fetched actor row and records its instance so
// all-instance fan-out learns about new servers as a side effect.
func (f *Fetcher) persistActor(domain, sharedInbox string, save func() error) error {
	if err := save(); err != nil {
		return err
	}
	if domain == "" {
		return nil
	}
	if err := f.store.SaveInstance(&storage.Instance{Domain: domain, SharedInbox: sharedInbox}); err != nil {
		telemetry.Error(err, "recording instance [%s]", domain)
	}
	return nil
}

func personFromActor(actor *activity.Actor) *storage.Person {
	p := &storage.Person{
		ID:           actor.ID,
		Name:         actor.PreferredUsername,
		Domain:       domainOf(actor.ID),
		Local:        false,
		Inbox:        actor.Inbox,
		PublicKeyPEM: keyPEM(actor),
	}
	if actor.Endpoints != nil {
		p.SharedInbox = actor.Endpoints.SharedInbox
	}
	return p
}

func communityFromActor(actor *activity.Actor) *storage.Community {
	c := &storage.Community{
		ID:           actor.ID,
		Name:         actor.PreferredUsername,
		Domain:       domainOf(actor.ID),
		Local:        false,
		Inbox:        actor.Inbox,
		FollowersURL: actor.Followers,
		PublicKeyPEM: keyPEM(actor),
		Visibility:   storage.VisibilityPublic,
	}
	if actor.Endpoints != nil {
		c.SharedInbox = actor.Endpoints.SharedInbox
	}
	return c
}

func keyPEM(actor *activity.Actor) string {
	if actor.PublicKey == nil {
		return ""
	}
	return actor.PublicKey.PublicKeyPEM
}

func domainOf(iri string) string {
	u, err := url.Parse(iri)
	if err != nil {
		return ""
	}
	return u.Host
}
