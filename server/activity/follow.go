package activity

import "encoding/json"

// Follow asks to follow a community (or person). The object is the actor
// being followed.
type Follow struct {
	Context interface{} `json:"@context,omitempty"`
	Type    string      `json:"type"`
	ID      string      `json:"id"`
	Actor   string      `json:"actor"`
	To      []string    `json:"to,omitempty"`
	Object  IDOrObject  `json:"object"`
}

func NewFollow(host, actorID, targetID string) Follow {
	return Follow{
		Context: Context,
		Type:    FollowType,
		ID:      NewID(host, FollowType),
		Actor:   actorID,
		To:      []string{targetID},
		Object:  IDOrObject{ID: targetID},
	}
}

// AcceptFollow confirms a Follow; the original Follow envelope is echoed
// back as the object so the sender can match it up.
type AcceptFollow struct {
	Context interface{} `json:"@context,omitempty"`
	Type    string      `json:"type"`
	ID      string      `json:"id"`
	Actor   string      `json:"actor"`
	To      []string    `json:"to"`
	CC      []string    `json:"cc"`
	Object  Follow      `json:"object"`
}

func NewAcceptFollow(host, actorID string, follow Follow) AcceptFollow {
	return AcceptFollow{
		Context: Context,
		Type:    AcceptType,
		ID:      NewID(host, AcceptType),
		Actor:   actorID,
		To:      []string{follow.Actor},
		CC:      make([]string, 0),
		Object:  follow,
	}
}

// RejectFollow declines a Follow, carrying the original Follow so the
// recipient can tear down the relationship it had recorded.
type RejectFollow struct {
	Context interface{} `json:"@context,omitempty"`
	Type    string      `json:"type"`
	ID      string      `json:"id"`
	Actor   string      `json:"actor"`
	To      SkipErrorTo `json:"to,omitempty"`
	Object  Follow      `json:"object"`
}

func NewRejectFollow(host, actorID string, follow Follow) RejectFollow {
	return RejectFollow{
		Context: Context,
		Type:    RejectType,
		ID:      NewID(host, RejectType),
		Actor:   actorID,
		To:      SkipErrorTo{follow.Actor},
		Object:  follow,
	}
}

// SkipErrorTo is a recipient list that tolerates peers which omit or
// misshape the to field on Reject. A decode failure degrades to an empty
// list instead of failing the whole envelope.
type SkipErrorTo []string

func (t *SkipErrorTo) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*t = list
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = []string{s}
		return nil
	}
	*t = nil
	return nil
}
