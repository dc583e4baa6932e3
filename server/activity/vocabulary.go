package activity

// ActivityPub and ActivityStreams vocabulary

const (
	TypeProperty = "type"
	IDProperty   = "id"
)

const (
	Context       = "https://www.w3.org/ns/activitystreams"
	PublicAddress = "https://www.w3.org/ns/activitystreams#Public"
	ContentType   = `application/activity+json; profile="https://www.w3.org/ns/activitystreams"`
	ContentTypeLD = `application/ld+json; profile="https://www.w3.org/ns/activitystreams"`
)

// ActivityPub actor types
const (
	PersonType  = "Person"
	GroupType   = "Group"
	ServiceType = "Service"
)

// ActivityPub object types
const (
	NoteType      = "Note"
	PageType      = "Page"
	TombstoneType = "Tombstone"
)

// ActivityPub activity types
const (
	FollowType = "Follow"
	AcceptType = "Accept"
	RejectType = "Reject"
	UndoType   = "Undo"
	DeleteType = "Delete"
	FlagType   = "Flag"
)

const (
	// ActivityPub time format string
	TimeFormat = "2006-01-02T15:04:05Z"
)
