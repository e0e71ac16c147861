// Package media handles raw upload bodies: size-capped buffering, mime type
// gating, and the base64 transport encoding the upstream model API expects.
package media

import (
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

// MaxBytes is the hard ceiling on media size. The whole payload is held in
// memory, which is only acceptable because of this limit.
const MaxBytes = 50 * 1024 * 1024

var (
	ErrTooLarge = errors.New("media exceeds maximum size")
	ErrEmpty    = errors.New("media is empty")
)

// Payload is a request-scoped media attachment: the mime type plus the
// base64 form of the raw bytes. It is built per request and discarded once
// the upstream call completes.
type Payload struct {
	MimeType string
	Data     string
}

// NewPayload base64-encodes raw media bytes into a transport payload.
func NewPayload(mimeType string, raw []byte) Payload {
	return Payload{
		MimeType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(raw),
	}
}

// ReadAll buffers r fully, failing with ErrTooLarge when the source holds
// more than max bytes and ErrEmpty when it holds none.
func ReadAll(r io.Reader, max int64) ([]byte, error) {
	buf, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(buf)) > max {
		return nil, ErrTooLarge
	}
	if len(buf) == 0 {
		return nil, ErrEmpty
	}
	return buf, nil
}

// SupportedMimeType reports whether ct names an ingestible media type.
func SupportedMimeType(ct string) bool {
	return strings.HasPrefix(ct, "audio/") || strings.HasPrefix(ct, "video/")
}
