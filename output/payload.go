package output

import (
	"encoding/base64"
	"strings"

	"github.com/status-im/promptctl/models"
)

// MaxBase64Length bounds the encoded payload: about 1.33x a 50 MiB binary
const MaxBase64Length = 70_000_000

// DecodeDataURI splits "<prefix>,<base64>" on the first comma, enforces the
// size ceiling and decodes strictly. The prefix (e.g. "data:image/png;base64")
// is returned as-is.
func DecodeDataURI(payload string) (prefix string, data []byte, err error) {
	parts := strings.SplitN(payload, ",", 2)
	if len(parts) != 2 {
		return "", nil, models.Errorf(models.ErrInvalidPayload, "Payload is not a data URI: missing ',' separator")
	}
	prefix, encoded := parts[0], parts[1]

	if len(encoded) > MaxBase64Length {
		return "", nil, models.Errorf(models.ErrPayloadTooLarge,
			"Encoded payload is %d characters, limit is %d", len(encoded), MaxBase64Length)
	}

	// the decoder silently skips line breaks
	if strings.ContainsAny(encoded, "\r\n") {
		return "", nil, models.Errorf(models.ErrInvalidPayload, "Payload is not valid base64: contains line breaks")
	}

	data, err = base64.StdEncoding.Strict().DecodeString(encoded)
	if err != nil {
		return "", nil, models.Wrapf(models.ErrInvalidPayload, err, "Payload is not valid base64")
	}

	return prefix, data, nil
}

// MIMEType extracts the media type from a data URI prefix, or "" when absent
func MIMEType(prefix string) string {
	mime := strings.TrimPrefix(prefix, "data:")
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return mime
}
