package quest

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// NoveltySignature computes the content hash blueprint producers use to
// detect and skip near-duplicate quests. The same parts in the same order
// always produce the same signature.
func NoveltySignature(parts ...string) string {
	sum := sha1.Sum([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(sum[:])
}
