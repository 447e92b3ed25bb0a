package storage

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidDataURI = errors.New("invalid data uri")

// Image is a decoded base64 data URI.
type Image struct {
	ContentType string
	Data        []byte
}

var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// Ext is the file extension for the image's media type, jpg when unknown.
func (i *Image) Ext() string {
	if ext, ok := extensions[i.ContentType]; ok {
		return ext
	}
	return "jpg"
}

// ParseDataURI decodes "data:<mediatype>;base64,<payload>".
func ParseDataURI(uri string) (*Image, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURI)
	}

	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing payload separator", ErrInvalidDataURI)
	}

	params := strings.Split(meta, ";")
	if params[len(params)-1] != "base64" {
		return nil, fmt.Errorf("%w: payload is not base64 encoded", ErrInvalidDataURI)
	}

	contentType := strings.ToLower(strings.TrimSpace(params[0]))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataURI, err)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidDataURI)
	}

	return &Image{ContentType: contentType, Data: data}, nil
}
