// Package mediatypes defines which file formats the ingest service treats
// as video and what MIME type each one is served with.
//
// It sits at the bottom of the import graph. Nothing here depends on any
// other package in this module, so validation, pipeline, and handler code
// can all share one answer to "is this a video?" without import cycles.
//
// Typical use when screening an upload:
//
//	if mediatypes.IsVideoExtension(mediatypes.Ext(filename)) {
//	    // treat as a video container
//	}
//
// IsVideoContentType applies the same question to a declared Content-Type,
// ignoring parameters:
//
//	mediatypes.IsVideoContentType("video/mp4; codecs=avc1") // true
//
// GetMimeType picks the Content-Type for serving a stored artifact:
//
//	mediatypes.GetMimeType(".mkv") // "video/x-matroska"
package mediatypes
