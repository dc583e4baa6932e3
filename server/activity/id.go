package activity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewID mints a fresh activity IRI on the given host. Every outbound
// activity gets its own dereferenceable id, which remote servers use for
// deduplication.
func NewID(host, kind string) string {
	return fmt.Sprintf("https://%s/activities/%s/%s", host, strings.ToLower(kind), uuid.NewString())
}
