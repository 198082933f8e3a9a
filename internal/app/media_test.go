package app

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okhotin/parley/internal/domain"
)

// pngPayload is a minimal PNG header, enough for content sniffing.
var pngPayload = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...)

func TestBuildMediaBodyAcceptsImage(t *testing.T) {
	body, err := BuildMediaBody(base64.StdEncoding.EncodeToString(pngPayload))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(body, "data:image/png;base64,"), body)
}

func TestBuildMediaBodyRejectsNonMedia(t *testing.T) {
	_, err := BuildMediaBody(base64.StdEncoding.EncodeToString([]byte("just some text")))
	assert.ErrorIs(t, err, domain.ErrMediaUnsupported)
}

func TestBuildMediaBodyRejectsBadBase64(t *testing.T) {
	_, err := BuildMediaBody("not-base64!!!")
	assert.ErrorIs(t, err, domain.ErrMediaUnsupported)
}

func TestBuildMediaBodyRejectsEmptyPayload(t *testing.T) {
	_, err := BuildMediaBody("")
	assert.ErrorIs(t, err, domain.ErrMediaUnsupported)
}

func TestBuildMediaBodyRejectsOversizedPayload(t *testing.T) {
	big := make([]byte, MaxMediaBytes+1)
	copy(big, pngPayload)
	_, err := BuildMediaBody(base64.StdEncoding.EncodeToString(big))
	assert.ErrorIs(t, err, domain.ErrMediaUnsupported)
}
