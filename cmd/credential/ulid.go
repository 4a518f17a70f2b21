package credential

import (
	"time"

	"github.com/wikr-wasd/123Hansa-sub007/cmd/credential/ids"
)

// NewULID returns a new ULID (26-char string).
func NewULID(now time.Time) (string, error) {
	return ids.NewULID(now)
}
