package activity

// Page is the wire representation of a post.
type Page struct {
	Context      interface{} `json:"@context,omitempty"`
	Type         string      `json:"type"`
	ID           string      `json:"id"`
	AttributedTo string      `json:"attributedTo,omitempty"`
	Audience     string      `json:"audience,omitempty"`
	Name         string      `json:"name,omitempty"`
	To           []string    `json:"to,omitempty"`
}

// Note is the wire representation of a comment.
type Note struct {
	Context      interface{} `json:"@context,omitempty"`
	Type         string      `json:"type"`
	ID           string      `json:"id"`
	AttributedTo string      `json:"attributedTo,omitempty"`
	Audience     string      `json:"audience,omitempty"`
	InReplyTo    string      `json:"inReplyTo,omitempty"`
	Content      string      `json:"content,omitempty"`
	To           []string    `json:"to,omitempty"`
}
