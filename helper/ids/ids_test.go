package ids

import (
	"regexp"
	"testing"

	"github.com/shoenig/test/must"
)

func TestJobID(t *testing.T) {
	id := JobID()
	must.RegexMatch(t, regexp.MustCompile(`^job-\d{13}-[0-9a-f]{10}$`), id)
}

func TestJobID_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := JobID()
		_, dup := seen[id]
		must.False(t, dup, must.Sprintf("duplicate id %s", id))
		seen[id] = struct{}{}
	}
}
