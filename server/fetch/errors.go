package fetch

import "errors"

var (
	// ErrNotFound means the object or actor could not be resolved locally
	// or remotely. Terminal for the enclosing activity.
	ErrNotFound = errors.New("object not found")

	// ErrTransport means a remote fetch failed at the network or HTTP
	// level. During inbound verification this is as terminal as not found.
	ErrTransport = errors.New("remote fetch failed")

	// ErrUnreachable means the operation is not supported for the object
	// kind, like remote resolution of a private message.
	ErrUnreachable = errors.New("operation not supported for this object")
)
