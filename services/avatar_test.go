package services

import (
	"chat-relay/domain/mimetypes"
	"chat-relay/errors"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func dataURL(mediaType string, raw []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(raw)
}

func TestCheckAvatar(t *testing.T) {
	tests := []struct {
		name     string
		avatar   string
		maxBytes int
		want     mimetypes.MIME
		wantErr  bool
	}{
		{name: "png", avatar: dataURL("image/png", pngHeader), maxBytes: 1024, want: mimetypes.ImagePNG},
		{name: "gif declared as png", avatar: dataURL("image/png", []byte("GIF89a\x01\x00\x01\x00")), maxBytes: 1024, want: mimetypes.ImageGIF},
		{name: "text declared as png", avatar: dataURL("image/png", []byte("hello world")), maxBytes: 1024, wantErr: true},
		{name: "too large", avatar: dataURL("image/png", append(pngHeader, make([]byte, 2048)...)), maxBytes: 1024, wantErr: true},
		{name: "not a data url", avatar: "https://example.com/a.png", maxBytes: 1024, wantErr: true},
		{name: "missing payload", avatar: "data:image/png;base64", maxBytes: 1024, wantErr: true},
		{name: "broken base64", avatar: "data:image/png;base64,***", maxBytes: 1024, wantErr: true},
		{name: "empty", avatar: "data:image/png;base64,", maxBytes: 1024, wantErr: true},
		{name: "svg is refused", avatar: "data:image/svg+xml," + strings.ReplaceAll(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`, " ", "%20"), maxBytes: 1024, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			got, err := checkAvatar(tt.avatar, tt.maxBytes)
			if tt.wantErr {
				req.ErrorIs(err, errors.ErrInvalidAvatar)
				return
			}
			req.NoError(err)
			req.Equal(tt.want, got)
		})
	}
}
