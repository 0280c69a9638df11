package catalog

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/hyperjump/movierec/movies"))

// MovieID returns a stable id for a movie without one. The same title and year always
// yield the same id, so re-importing a catalog updates rows instead of duplicating them.
func MovieID(title string, year int) string {
	key := strings.ToLower(strings.Join(strings.Fields(title), " ")) + "|" + strconv.Itoa(year)
	return uuid.NewSHA1(namespace, []byte(key)).String()
}
