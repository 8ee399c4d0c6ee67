package tesseract

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

type sourceFormat int

const (
	formatUnknown sourceFormat = iota
	formatImage
	formatPDF
)

var extensionFormats = map[string]sourceFormat{
	".png":  formatImage,
	".jpg":  formatImage,
	".jpeg": formatImage,
	".tif":  formatImage,
	".tiff": formatImage,
	".bmp":  formatImage,
	".gif":  formatImage,
	".webp": formatImage,
	".pnm":  formatImage,
	".pbm":  formatImage,
	".pgm":  formatImage,
	".ppm":  formatImage,
	".pdf":  formatPDF,
}

var mediaTypeFormats = map[string]sourceFormat{
	"image/png":                formatImage,
	"image/jpeg":               formatImage,
	"image/tiff":               formatImage,
	"image/bmp":                formatImage,
	"image/x-ms-bmp":           formatImage,
	"image/gif":                formatImage,
	"image/webp":               formatImage,
	"image/x-portable-anymap":  formatImage,
	"image/x-portable-bitmap":  formatImage,
	"image/x-portable-graymap": formatImage,
	"image/x-portable-pixmap":  formatImage,
	"application/pdf":          formatPDF,
}

// detectFormat resolves the upload format from its extension, then its
// declared media type, then the leading bytes.
func detectFormat(filename, mimeType string, head []byte) sourceFormat {
	if f, ok := extensionFormats[strings.ToLower(filepath.Ext(filename))]; ok {
		return f
	}
	if mediaType, _, err := mime.ParseMediaType(mimeType); err == nil {
		if f, ok := mediaTypeFormats[strings.ToLower(mediaType)]; ok {
			return f
		}
	}
	if len(head) == 0 {
		return formatUnknown
	}
	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(head))
	return mediaTypeFormats[sniffed]
}
