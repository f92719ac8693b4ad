package filetype

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Kind is the coarse media class a report cares about.
type Kind string

const (
	KindUnknown     Kind = "unknown"
	KindImage       Kind = "image"
	KindPDF         Kind = "pdf"
	KindSpreadsheet Kind = "spreadsheet"
)

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType  string
	Extension string
	Kind      Kind
}

// Detector handles file type detection using magic bytes
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// KindFromExtension classifies by file name only.
func KindFromExtension(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return KindImage
	case ".pdf":
		return KindPDF
	case ".xls", ".xlsx":
		return KindSpreadsheet
	}
	return KindUnknown
}

// Detect detects the actual file type using magic bytes, not filename
func (d *Detector) Detect(filePath string) (*FileTypeInfo, error) {
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}

	mimeType := mtype.String()
	extension := mtype.Extension()
	ext := strings.ToLower(filepath.Ext(filePath))

	// Office formats are containers; trust the extension once the container matches.
	switch {
	case (mimeType == "application/zip" || strings.Contains(mimeType, "application/x-zip")) && ext == ".xlsx":
		mimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		extension = ".xlsx"
	case (mimeType == "application/x-ole-storage" || mimeType == "application/x-cfb") && ext == ".xls":
		mimeType = "application/vnd.ms-excel"
		extension = ".xls"
	}

	info := &FileTypeInfo{MIMEType: mimeType, Extension: extension}
	info.Kind = kindOf(mimeType)

	log.Debug().Str("mime", mimeType).Str("kind", string(info.Kind)).Str("file", filePath).Msg("detected file type")
	return info, nil
}

// Confirm reports whether the magic bytes of path agree with its extension.
// Unknown extensions are never confirmed.
func (d *Detector) Confirm(path string) (Kind, bool) {
	want := KindFromExtension(path)
	if want == KindUnknown {
		return KindUnknown, false
	}
	info, err := d.Detect(path)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("file type detection failed")
		return want, false
	}
	return want, info.Kind == want
}

func kindOf(mimeType string) Kind {
	switch {
	case mimeType == "image/jpeg", mimeType == "image/png":
		return KindImage
	case mimeType == "application/pdf":
		return KindPDF
	case mimeType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		mimeType == "application/vnd.ms-excel":
		return KindSpreadsheet
	}
	return KindUnknown
}
