package store

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	apperrors "github.com/lexvault/lexvault/pkg/errors"
)

// centuryPattern constrains the century label: 1 to 32 characters drawn
// from letters, digits, underscore, and hyphen. Slashes are excluded so
// rendered addresses stay unambiguous.
var centuryPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// ValidCentury reports whether s is usable as a century label.
func ValidCentury(s string) bool {
	return centuryPattern.MatchString(s)
}

// DocumentAddress identifies one stored document. Century is a caller-chosen
// partition label, Bucket is derived from the document name, and Seq is
// allocated per (century, bucket) starting at 1.
type DocumentAddress struct {
	Century string
	Bucket  int
	Seq     int64
}

// String renders the canonical <century>/<bucket>/<seq> form.
func (a DocumentAddress) String() string {
	return fmt.Sprintf("%s/%d/%d", a.Century, a.Bucket, a.Seq)
}

// ParseAddress parses and validates a rendered address. The bucket and
// sequence must be plain base-10 integers with no sign, and the sequence
// starts at 1.
func ParseAddress(s string) (DocumentAddress, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return DocumentAddress{}, apperrors.Formatf("address %q: want <century>/<bucket>/<seq>", s)
	}
	if !ValidCentury(parts[0]) {
		return DocumentAddress{}, apperrors.Formatf("address %q: bad century label", s)
	}
	bucket, err := strconv.Atoi(parts[1])
	if err != nil || bucket < 0 || parts[1] != strconv.Itoa(bucket) {
		return DocumentAddress{}, apperrors.Formatf("address %q: bad bucket", s)
	}
	seq, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || seq < 1 || parts[2] != strconv.FormatInt(seq, 10) {
		return DocumentAddress{}, apperrors.Formatf("address %q: bad sequence", s)
	}
	return DocumentAddress{Century: parts[0], Bucket: bucket, Seq: seq}, nil
}

// AssignBucket deterministically maps a document name to a bucket by taking
// the first eight bytes of its SHA-256 digest as a big-endian integer modulo
// the bucket count. The same name always lands in the same bucket.
func AssignBucket(name string, buckets int) int {
	sum := sha256.Sum256([]byte(name))
	return int(binary.BigEndian.Uint64(sum[:8]) % uint64(buckets))
}
