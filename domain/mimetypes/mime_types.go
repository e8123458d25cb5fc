package mimetypes

import "mime"

type MIME string

const (
	Unknown   MIME = "unknown"
	ImagePNG  MIME = "image/png"
	ImageJPEG MIME = "image/jpeg"
	ImageGIF  MIME = "image/gif"
	ImageWebP MIME = "image/webp"
	ImageBMP  MIME = "image/bmp"
)

// Avatars lists the image types accepted as profile pictures.
var Avatars = []MIME{ImagePNG, ImageJPEG, ImageGIF, ImageWebP, ImageBMP}

func Matches(detected string, expected MIME) (MIME, bool) {
	mt, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return Unknown, false
	}
	return expected, mt == string(expected)
}

// MatchesAny returns the first of candidates that detected matches.
func MatchesAny(detected string, candidates ...MIME) (MIME, bool) {
	for _, candidate := range candidates {
		if m, ok := Matches(detected, candidate); ok {
			return m, true
		}
	}
	return Unknown, false
}
