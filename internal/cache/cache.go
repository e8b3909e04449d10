// Package cache stores rendered collection pages keyed by their canonical query.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const keyPrefix = "page:"

// PageCache is a byte store with its own expiry policy.
type PageCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Key derives the cache key for a resource and the canonical fragments of a request
// (page, page_size, sort=..., filters...). Fragment order matters.
func Key(resource string, fragments ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(fragments, "&")))
	return keyPrefix + resource + ":" + hex.EncodeToString(sum[:])
}
