package mediatypes

import (
	"mime"
	"path/filepath"
	"strings"
)

// MimeTypes maps every recognized video container extension (lowercase,
// leading dot) to the MIME type artifacts with that extension are served
// with. Membership in this map is what makes an extension recognized.
var MimeTypes = map[string]string{
	".3gp":  "video/3gpp",
	".avi":  "video/x-msvideo",
	".flv":  "video/x-flv",
	".m4v":  "video/x-m4v",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".mp4":  "video/mp4",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".ogv":  "video/ogg",
	".ts":   "video/mp2t",
	".webm": "video/webm",
	".wmv":  "video/x-ms-wmv",
}

// Ext returns the lowercase extension of filename, leading dot included,
// or "" when there is none.
func Ext(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// IsVideoExtension reports whether ext names a recognized video container.
// Pass extensions the way Ext produces them.
func IsVideoExtension(ext string) bool {
	_, ok := MimeTypes[ext]
	return ok
}

// IsVideoContentType reports whether a declared Content-Type names video
// content. Parameters such as "; codecs=avc1" are ignored, as is case.
func IsVideoContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.HasPrefix(mediaType, "video/")
}

// GetMimeType returns the MIME type to serve for a video extension, or
// "application/octet-stream" when the extension is not recognized.
func GetMimeType(ext string) string {
	if typ, ok := MimeTypes[ext]; ok {
		return typ
	}
	return "application/octet-stream"
}
