package extract

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFileTooLarge indicates an upload over the size limit.
	ErrFileTooLarge = errors.New("file size exceeds limit")

	// ErrUnsupportedType indicates a mimetype with no extractor.
	ErrUnsupportedType = errors.New("unsupported file type")
)

// MaxFileSize is the upload size limit.
const MaxFileSize = 10 * 1024 * 1024

// minFileTextLength rejects files that extract to nearly nothing.
const minFileTextLength = 10

// textMimeTypes extract directly as UTF-8 text.
var textMimeTypes = map[string]bool{
	"text/plain":    true,
	"text/markdown": true,
	"text/csv":      true,
}

// imageMimeTypes get a placeholder entry; content analysis for images is a
// concern of the external extraction collaborators, not this package.
var imageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// FileContent is the extraction result for one uploaded file.
type FileContent struct {
	FileName string
	MimeType string
	Size     int64
	Text     string
}

// FileText extracts plain text from an uploaded file's bytes.
//
// Binary document formats (PDF, Word) are handled by external extraction
// services upstream; this extractor covers the text and image mimetypes the
// API accepts directly.
func FileText(fileName, mimeType string, data []byte) (*FileContent, error) {
	if int64(len(data)) > MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(data))
	}

	var text string
	switch {
	case textMimeTypes[mimeType]:
		text = string(data)
	case imageMimeTypes[mimeType]:
		text = fmt.Sprintf("Image file: %s. Content analysis not yet implemented for images.", fileName)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}

	if len(strings.TrimSpace(text)) < minFileTextLength {
		return nil, fmt.Errorf("%w: in the file", ErrNoContent)
	}

	return &FileContent{
		FileName: fileName,
		MimeType: mimeType,
		Size:     int64(len(data)),
		Text:     text,
	}, nil
}
