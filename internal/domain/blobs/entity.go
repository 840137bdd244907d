package blobs

import "strings"

// Object is a newly created object in the watched bucket
type Object struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Kind enum
type Kind string

const (
	KindImage       Kind = "image"
	KindText        Kind = "text"
	KindUnsupported Kind = "unsupported"
)

// Classify picks the analyzer kind from the object name suffix.
// Matching is exact and case-sensitive: "photo.JPG" is unsupported.
func Classify(name string) Kind {
	switch {
	case strings.HasSuffix(name, ".jpg"), strings.HasSuffix(name, ".png"):
		return KindImage
	case strings.HasSuffix(name, ".txt"):
		return KindText
	default:
		return KindUnsupported
	}
}
