package cache

import (
	"hash/fnv"
	"strconv"
)

// Key derives the cache key for text translated into targetLanguage.
// FNV-1a is stable across processes and platforms.
func Key(targetLanguage, text string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	return "auto-" + targetLanguage + "-" + strconv.FormatUint(h.Sum64(), 36)
}
