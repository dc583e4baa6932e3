package activity

// Activity is the generic envelope used to sniff the type of an incoming
// document before decoding it into one of the concrete activity structs.
// Actor and Object stay untyped because JSON-LD allows either a plain IRI
// string or an embedded object in those positions.
type Activity struct {
	Context interface{} `json:"@context,omitempty"`
	Type    string      `json:"type"`
	ID      string      `json:"id,omitempty"`
	Actor   interface{} `json:"actor,omitempty"`
	Object  interface{} `json:"object,omitempty"`
	To      interface{} `json:"to,omitempty"`
	CC      interface{} `json:"cc,omitempty"`
	Summary string      `json:"summary,omitempty"`
}
