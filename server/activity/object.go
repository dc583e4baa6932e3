package activity

import (
	"encoding/json"
	"fmt"
)

// IDOrObject decodes an object position that may hold either a plain IRI
// string or an embedded object carrying an "id" property. Only the id is
// retained; embedded content is dereferenced separately when needed.
type IDOrObject struct {
	ID string
}

func (o *IDOrObject) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		o.ID = s
		return nil
	}
	var m struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("object is neither IRI nor object: %w", err)
	}
	if m.ID == "" {
		return fmt.Errorf("embedded object has no id")
	}
	o.ID = m.ID
	return nil
}

func (o IDOrObject) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.ID)
}
