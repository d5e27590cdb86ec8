package mimetypes

import "mime"

type MIME string

const (
	Unknown   MIME = "unknown"
	TextPlain MIME = "text/plain"

	ApplicationPDF MIME = "application/pdf"
	ApplicationZIP MIME = "application/zip"

	ImagePNG  MIME = "image/png"
	ImageJPEG MIME = "image/jpeg"
	ImageGIF  MIME = "image/gif"
	ImageWEBP MIME = "image/webp"

	AudioMPEG MIME = "audio/mpeg"
	AudioOGG  MIME = "audio/ogg"
	VideoMP4  MIME = "video/mp4"
)

// Attachments lists the types a chat attachment may have.
var Attachments = []MIME{
	TextPlain,
	ApplicationPDF, ApplicationZIP,
	ImagePNG, ImageJPEG, ImageGIF, ImageWEBP,
	AudioMPEG, AudioOGG, VideoMP4,
}

// ToMIME drops the parameters of a detected media type ("text/plain; charset=utf-8").
func ToMIME(detected string) MIME {
	mt, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return Unknown
	}
	return MIME(mt)
}

func Matches(detected string, expected MIME) (MIME, bool) {
	mt := ToMIME(detected)
	if mt == Unknown {
		return Unknown, false
	}
	return expected, mt == expected
}

// Allowed reports whether the detected type is one of the allowed ones.
func Allowed(detected string, allowed []MIME) (MIME, bool) {
	mt := ToMIME(detected)
	for _, a := range allowed {
		if a == mt {
			return mt, true
		}
	}
	return mt, false
}
