// Package transcode normalizes uploaded videos to a fixed grayscale
// H.264/MP4 profile using FFmpeg.
//
// The encoder arguments are pinned: libx264 at veryfast/CRF 23, chroma
// flattened via format=gray, yuv420p output, AAC audio at 128k, faststart
// MP4, single-threaded x264. Pinning keeps repeated transcodes of the
// same input metadata-identical.
//
// A buffered-channel gate bounds concurrent ffmpeg processes to the
// configured worker count; waiting respects the request context so an
// abandoned upload never starts an encode. Live processes are tracked
// and killed on Shutdown.
//
// Transcoding requires ffmpeg to be installed and available in the
// system PATH.
package transcode
