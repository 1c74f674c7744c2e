// Package probe extracts video metadata using ffprobe.
//
// It runs ffprobe with JSON output and decodes the result into typed
// structs; no text scraping. The first stream with codec_type "video"
// supplies dimensions, frame rate, and duration, with the container
// format duration as fallback. Rational frame rates ("30000/1001") are
// reduced to floats, with degenerate ratios reported as 0.
//
// Inputs ffprobe cannot read map to ErrCorruptStream; inputs it reads
// but that contain no video stream map to ErrUnsupportedFormat.
//
// Requires ffprobe in the system PATH.
package probe
