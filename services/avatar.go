package services

import (
	"chat-relay/domain/mimetypes"
	"chat-relay/errors"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// checkAvatar accepts a data URL whose decoded bytes fit in maxBytes and
// sniff as one of the accepted image types. The declared media type is
// ignored: only the content decides.
func checkAvatar(dataURL string, maxBytes int) (mimetypes.MIME, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return mimetypes.Unknown, fmt.Errorf("%w: not a data URL", errors.ErrInvalidAvatar)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return mimetypes.Unknown, fmt.Errorf("%w: missing payload", errors.ErrInvalidAvatar)
	}

	var raw []byte
	var err error
	if strings.HasSuffix(meta, ";base64") {
		if base64.StdEncoding.DecodedLen(len(payload)) > maxBytes+2 {
			return mimetypes.Unknown, fmt.Errorf("%w: larger than %d bytes", errors.ErrInvalidAvatar, maxBytes)
		}
		raw, err = base64.StdEncoding.DecodeString(payload)
	} else {
		var unescaped string
		unescaped, err = url.PathUnescape(payload)
		raw = []byte(unescaped)
	}
	if err != nil {
		return mimetypes.Unknown, fmt.Errorf("%w: %w", errors.ErrInvalidAvatar, err)
	}
	if len(raw) == 0 || len(raw) > maxBytes {
		return mimetypes.Unknown, fmt.Errorf("%w: size %d out of range", errors.ErrInvalidAvatar, len(raw))
	}

	detected := mimetype.Detect(raw).String()
	m, ok := mimetypes.MatchesAny(detected, mimetypes.Avatars...)
	if !ok {
		return mimetypes.Unknown, fmt.Errorf("%w: detected %s", errors.ErrInvalidAvatar, detected)
	}
	return m, nil
}
