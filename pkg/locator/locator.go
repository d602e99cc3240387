// Package locator parses and formats store://bucket/key object locators.
package locator

import (
	"fmt"
	"net/url"
	"strings"
)

const Scheme = "store"

// Parse splits a store://bucket/key locator into bucket and key.
func Parse(loc string) (bucket, key string, err error) {
	u, err := url.Parse(loc)
	if err != nil {
		return "", "", fmt.Errorf("invalid locator %q: %w", loc, err)
	}
	if u.Scheme != Scheme {
		return "", "", fmt.Errorf("invalid locator %q: scheme must be %s", loc, Scheme)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid locator %q: missing bucket or key", loc)
	}
	return bucket, key, nil
}

// Format builds a store://bucket/key locator.
func Format(bucket, key string) string {
	return fmt.Sprintf("%s://%s/%s", Scheme, bucket, strings.TrimPrefix(key, "/"))
}
