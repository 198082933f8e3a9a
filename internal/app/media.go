package app

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/okhotin/parley/internal/domain"
)

// MaxMediaBytes caps a decoded inline attachment.
const MaxMediaBytes = 4 << 20

// BuildMediaBody validates a base64 attachment and renders it as a data URI
// suitable for inline display. Only image and audio payloads are accepted;
// any failure is reported to the sender and nothing reaches the room.
func BuildMediaBody(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMediaUnsupported, err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: empty payload", domain.ErrMediaUnsupported)
	}
	if len(raw) > MaxMediaBytes {
		return "", fmt.Errorf("%w: payload exceeds %d bytes", domain.ErrMediaUnsupported, MaxMediaBytes)
	}

	mt := mimetype.Detect(raw)
	kind := mt.String()
	if !strings.HasPrefix(kind, "image/") && !strings.HasPrefix(kind, "audio/") {
		return "", fmt.Errorf("%w: %s", domain.ErrMediaUnsupported, kind)
	}
	return "data:" + kind + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}
