package storage

import (
	"crypto/md5"
	"fmt"
	"io"

	"trends-go/pkg/batch"
)

// Fingerprint generates a stable cache key from the query-relevant fields of
// a request. Batch size is part of the key: the upstream normalizes scores
// within a query, so regrouped keywords can score differently. Keywords are
// separated by NUL so adjacent keywords cannot collide with a single
// concatenated one.
func Fingerprint(req *batch.Request) string {
	h := md5.New()
	fmt.Fprintf(h, "%d|%s|%d|%d|", req.LookbackMonths, req.Geo, req.TZ, req.BatchSize)
	for _, keyword := range req.Keywords {
		io.WriteString(h, keyword)
		io.WriteString(h, "\x00")
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// FingerprintShort returns the first 8 characters of a request fingerprint,
// for logging.
func FingerprintShort(req *batch.Request) string {
	return Fingerprint(req)[:8]
}
