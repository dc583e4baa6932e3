package activity

// Delete is sent when an object is deleted by its creator, or removed by a
// moderator. A set Summary signals a mod action; without it the delete is a
// self-action by the original author. RemoveData is only meaningful for
// person deletion, where it requests a purge of the person's contributions.
type Delete struct {
	Context    interface{} `json:"@context,omitempty"`
	Type       string      `json:"type"`
	ID         string      `json:"id"`
	Actor      string      `json:"actor"`
	To         []string    `json:"to"`
	CC         []string    `json:"cc,omitempty"`
	Object     IDOrObject  `json:"object"`
	Summary    *string     `json:"summary,omitempty"`
	RemoveData *bool       `json:"removeData,omitempty"`
}

// IsModAction reports whether this delete was declared as a moderator
// removal rather than a self-delete.
func (d *Delete) IsModAction() bool {
	return d.Summary != nil && *d.Summary != ""
}

func NewDelete(host, actorID, objectID string, to []string, reason *string) Delete {
	return Delete{
		Context: Context,
		Type:    DeleteType,
		ID:      NewID(host, DeleteType),
		Actor:   actorID,
		To:      to,
		CC:      make([]string, 0),
		Object:  IDOrObject{ID: objectID},
		Summary: reason,
	}
}

// UndoDelete reverses a previous Delete for any deletable kind. The inner
// Delete is reconstructed rather than replayed verbatim; only its object and
// summary matter to the receiver.
type UndoDelete struct {
	Context interface{} `json:"@context,omitempty"`
	Type    string      `json:"type"`
	ID      string      `json:"id"`
	Actor   string      `json:"actor"`
	To      []string    `json:"to"`
	CC      []string    `json:"cc,omitempty"`
	Object  Delete      `json:"object"`
}

func NewUndoDelete(host, actorID, objectID string, to []string, reason *string) UndoDelete {
	inner := NewDelete(host, actorID, objectID, to, reason)
	return UndoDelete{
		Context: Context,
		Type:    UndoType,
		ID:      NewID(host, UndoType),
		Actor:   actorID,
		To:      to,
		CC:      make([]string, 0),
		Object:  inner,
	}
}
