package rotation

import (
	"time"

	"github.com/systmms/approtate/pkg/directory"
)

// PruneExpired splits creds into those to keep and those whose expiry is
// strictly before now. Order is preserved in both slices. Credentials with
// no expiry are kept.
func PruneExpired(creds []directory.Credential, now time.Time) (keep, removed []directory.Credential) {
	keep = make([]directory.Credential, 0, len(creds))
	for _, c := range creds {
		if c.ExpiredAt(now) {
			removed = append(removed, c)
			continue
		}
		keep = append(keep, c)
	}
	return keep, removed
}
