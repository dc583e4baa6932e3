package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/gorilla/mux"

	"github.com/fedforumdev/fedforum/server/activity"
	"github.com/fedforumdev/fedforum/server/telemetry"
)

var acctRegex = regexp.MustCompile(`acct:(.+)@(.+)`)

type webfingerLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type,omitempty"`
	HRef string `json:"href,omitempty"`
}

type webfingerDoc struct {
	Subject string          `json:"subject"`
	Aliases []string        `json:"aliases,omitempty"`
	Links   []webfingerLink `json:"links"`
}

// webfingerHandler serves handle discovery for local persons and
// communities, so peers can resolve name@ourdomain.
func (s *ActivityService) webfingerHandler(w http.ResponseWriter, r *http.Request) {
	resource := r.URL.Query().Get("resource")
	if resource == "" {
		telemetry.Log("WARNING: webfinger request without resource param")
		telemetry.Increment("webfinger_missing", 1)
		w.WriteHeader(http.StatusNotFound)
		return
	}
	matches := acctRegex.FindSubmatch([]byte(resource))
	if len(matches) == 0 {
		telemetry.Log("WARNING: malformed webfinger resource request [%s]", resource)
		telemetry.Increment("webfinger_malformed", 1)
		w.WriteHeader(http.StatusNotFound)
		return
	}
	name := string(matches[1])
	hostname := string(matches[2])
	if hostname != s.Config.PublicHost() {
		telemetry.Increment("webfinger_unrecognized", 1)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var iri string
	if person, err := s.store.FindPersonByName(name, false); err == nil && person != nil {
		iri = person.ID
	} else if community, err := s.store.FindCommunityByName(name, false); err == nil && community != nil {
		iri = community.ID
	} else {
		telemetry.Increment("webfinger_unrecognized", 1)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	doc := webfingerDoc{
		Subject: fmt.Sprintf("acct:%s@%s", name, hostname),
		Aliases: []string{iri},
		Links: []webfingerLink{
			{Rel: "self", Type: "application/activity+json", HRef: iri},
		},
	}
	w.Header().Set("Content-Type", "application/jrd+json")
	json.NewEncoder(w).Encode(&doc)
}

func (s *ActivityService) personHandler(w http.ResponseWriter, r *http.Request) {
	telemetry.Request(r, "personHandler")
	name := mux.Vars(r)["name"]
	person, err := s.store.FindPersonByName(name, false)
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if person == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	s.writeActorDoc(w, actorDoc(activity.PersonType, person.ID, person.Name, person.Inbox, person.SharedInbox, person.PublicKeyPEM))
}

func (s *ActivityService) communityHandler(w http.ResponseWriter, r *http.Request) {
	telemetry.Request(r, "communityHandler")
	name := mux.Vars(r)["name"]
	community, err := s.store.FindCommunityByName(name, false)
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if community == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	doc := actorDoc(activity.GroupType, community.ID, community.Name, community.Inbox, community.SharedInbox, community.PublicKeyPEM)
	doc.Followers = community.FollowersURL
	s.writeActorDoc(w, doc)
}

func actorDoc(kind, iri, name, inbox, sharedInbox, publicKeyPEM string) *activity.Actor {
	doc := &activity.Actor{
		Context:           activity.Context,
		Type:              kind,
		ID:                iri,
		PreferredUsername: name,
		Inbox:             inbox,
	}
	if sharedInbox != "" {
		doc.Endpoints = &activity.Endpoints{SharedInbox: sharedInbox}
	}
	if publicKeyPEM != "" {
		doc.PublicKey = &activity.PublicKey{
			ID:           iri + "#main-key",
			Owner:        iri,
			PublicKeyPEM: publicKeyPEM,
		}
	}
	return doc
}

func (s *ActivityService) writeActorDoc(w http.ResponseWriter, doc *activity.Actor) {
	jsonBody, err := json.Marshal(doc)
	if err != nil {
		telemetry.Error(err, "marshaling actor document")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", activity.ContentType)
	w.Write(jsonBody)
}

// LocalActorIRI builds the IRI for a local actor of the given kind.
func LocalActorIRI(host, kind, name string) string {
	prefix := "u"
	if kind == activity.GroupType {
		prefix = "c"
	}
	return fmt.Sprintf("https://%s/%s/%s", host, prefix, name)
}
