// Package sync implements bidirectional synchronization between the local
// event store and the remote calendar provider.
package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// Fingerprint computes a stable content hash of an event's synced fields.
// Links are sorted first so link order never affects the result; start and
// end are serialized as UTC RFC3339 instants. The hash detects drift between
// a paired local and remote event, so it only needs to be stable across
// process restarts.
func Fingerprint(title string, start, end time.Time, links []string) string {
	sorted := append([]string(nil), links...)
	sort.Strings(sorted)

	payload := strings.Join([]string{
		title,
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
		strings.Join(sorted, ","),
	}, "|")

	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
