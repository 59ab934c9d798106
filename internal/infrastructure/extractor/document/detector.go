package document

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Detector identifies uploads by their content, ignoring the declared type.
type Detector struct{}

func NewDetector() *Detector {
	return &Detector{}
}

// Detect returns the bare MIME type (no parameters) of data.
func (d *Detector) Detect(data []byte) string {
	return baseType(mimetype.Detect(data).String())
}

func baseType(value string) string {
	head, _, _ := strings.Cut(value, ";")
	return strings.TrimSpace(head)
}
