package intake

import (
	"path/filepath"
	"strings"
)

// Kind is the transport-level shape of an attachment.
type Kind int

const (
	KindOther Kind = iota
	// KindPhoto is a compressed chat photo; the transport picks the largest variant.
	KindPhoto
	// KindAudio is a typed audio object (music player attachment).
	KindAudio
	// KindDocument is a generic file upload.
	KindDocument
)

func (k Kind) String() string {
	switch k {
	case KindPhoto:
		return "photo"
	case KindAudio:
		return "audio"
	case KindDocument:
		return "document"
	default:
		return "other"
	}
}

// Attachment is an inbound file as described by the transport.
type Attachment struct {
	UserID   int64
	Kind     Kind
	MIME     string
	FileName string
	// FileID is the transport's handle for fetching the bytes.
	FileID string
	Size   int64
}

// Class is the slot an attachment fills.
type Class int

const (
	ClassRejected Class = iota
	ClassAudio
	ClassImage
)

func (c Class) String() string {
	switch c {
	case ClassAudio:
		return "audio"
	case ClassImage:
		return "image"
	default:
		return "rejected"
	}
}

// Reason explains a rejection.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonNotAudio Reason = "not_audio"
	ReasonNotImage Reason = "not_image"
)

// Classification is the outcome of Classify.
type Classification struct {
	Class  Class
	Reason Reason
	// Ext is the extension (without dot) used for the local copy.
	Ext string
}

// Accepted reports whether the attachment fills a slot.
func (c Classification) Accepted() bool {
	return c.Class != ClassRejected
}

const (
	mimeMP3  = "audio/mpeg"
	mimePNG  = "image/png"
	mimeJPEG = "image/jpeg"
)

// Classify decides which slot an attachment fills.
//
// Any attachment that is MP3 by MIME or name is audio. Typed audio that is not
// MP3 is rejected as not_audio. Photos are always images. Documents are
// checked against the MP3 rule first, then as PNG/JPEG. Everything else is
// rejected as not_image.
func Classify(att Attachment) Classification {
	if isMP3(att) {
		return Classification{Class: ClassAudio, Ext: "mp3"}
	}
	switch att.Kind {
	case KindAudio:
		return Classification{Class: ClassRejected, Reason: ReasonNotAudio}
	case KindPhoto:
		return Classification{Class: ClassImage, Ext: "jpg"}
	case KindDocument:
		if ext, ok := imageExt(att); ok {
			return Classification{Class: ClassImage, Ext: ext}
		}
	}
	return Classification{Class: ClassRejected, Reason: ReasonNotImage}
}

func isMP3(att Attachment) bool {
	if normalizeMIME(att.MIME) == mimeMP3 {
		return true
	}
	return strings.EqualFold(filepath.Ext(strings.TrimSpace(att.FileName)), ".mp3")
}

func imageExt(att Attachment) (string, bool) {
	mime := normalizeMIME(att.MIME)
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(att.FileName)))
	switch {
	case ext == ".png" || mime == mimePNG:
		return "png", true
	case ext == ".jpg" || ext == ".jpeg" || mime == mimeJPEG:
		return "jpg", true
	}
	return "", false
}

func normalizeMIME(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if idx := strings.IndexByte(value, ';'); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}
	return value
}
