package activity

// PublicKey is the key block embedded in an actor document.
type PublicKey struct {
	ID           string `json:"id"`
	Owner        string `json:"owner"`
	PublicKeyPEM string `json:"publicKeyPem"`
}

type Endpoints struct {
	SharedInbox string `json:"sharedInbox,omitempty"`
}

// Actor is the wire representation of a federated actor document,
// fetched from (or served at) the actor's IRI.
type Actor struct {
	Context           interface{} `json:"@context,omitempty"`
	Type              string      `json:"type"`
	ID                string      `json:"id"`
	PreferredUsername string      `json:"preferredUsername,omitempty"`
	Name              string      `json:"name,omitempty"`
	Inbox             string      `json:"inbox"`
	Outbox            string      `json:"outbox,omitempty"`
	Followers         string      `json:"followers,omitempty"`
	Endpoints         *Endpoints  `json:"endpoints,omitempty"`
	PublicKey         *PublicKey  `json:"publicKey,omitempty"`
}

// SharedInboxOrInbox prefers the shared inbox so that delivery to many
// actors on the same instance collapses to a single request.
func (a *Actor) SharedInboxOrInbox() string {
	if a.Endpoints != nil && a.Endpoints.SharedInbox != "" {
		return a.Endpoints.SharedInbox
	}
	return a.Inbox
}
