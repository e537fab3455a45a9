// Package classify detects media types from file content signatures.
// Detection never trusts file extensions.
package classify

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"shrinkray/internal/errors"
)

// DetectLimit caps how many header bytes are read for type detection.
const DetectLimit uint32 = 3072

func init() {
	mimetype.SetLimit(DetectLimit)
}

// Kind is the broad media category of a file.
type Kind int

const (
	KindUnknown Kind = iota
	KindImage
	KindVideo
	KindAudio
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Result describes a classified file.
type Result struct {
	Kind      Kind
	MIME      string // MIME type without parameters, e.g. "video/mp4"
	Container string // MIME subtype as a container hint, e.g. "mp4"
}

// Detect classifies the file at path by reading its header.
func Detect(path string) (Result, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return Result{}, errors.NewClassifyError(path, err)
	}
	return fromMIME(mtype.String()), nil
}

// DetectBytes classifies an in-memory header, such as a freshly
// encoded output before it is swapped into place.
func DetectBytes(data []byte) Result {
	return fromMIME(mimetype.Detect(data).String())
}

func fromMIME(mime string) Result {
	// Drop parameters such as "; charset=utf-8"
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}

	top, sub, found := strings.Cut(mime, "/")
	if !found {
		return Result{Kind: KindUnknown, MIME: mime}
	}

	res := Result{MIME: mime, Container: strings.TrimPrefix(sub, "x-")}
	switch top {
	case "image":
		res.Kind = KindImage
	case "video":
		res.Kind = KindVideo
	case "audio":
		res.Kind = KindAudio
	default:
		return Result{Kind: KindUnknown, MIME: mime}
	}
	return res
}
