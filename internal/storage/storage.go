// Package storage persists report images and hands back a public address for them.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ObjectStore is a bucket of publicly readable report images.
type ObjectStore interface {
	// Store uploads the data URI's payload and returns its public URL and object key.
	Store(ctx context.Context, deviceID, dataURI string) (url string, key string, err error)
	Delete(ctx context.Context, key string) error
}

// ObjectKey builds the object path for a device capture. The device id is
// escaped into a single path segment; the timestamp keeps successive
// captures from the same device apart.
func ObjectKey(deviceID string, at time.Time, ext string) string {
	return fmt.Sprintf("iot-reports/%s/%d.%s", url.PathEscape(deviceID), at.UnixMilli(), ext)
}

// escapeKey escapes every segment of an object key for use in a URL path.
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
