// Package ids mints coordinator-scoped identifiers.
package ids

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobID returns a globally unique, roughly time-ordered job id: a millisecond
// timestamp plus a random suffix.
func JobID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	return fmt.Sprintf("job-%d-%s", time.Now().UnixMilli(), suffix)
}
