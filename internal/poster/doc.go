// Package poster generates JPEG poster frames for stored artifacts.
//
// A poster is a single frame grabbed by ffmpeg near the start of the
// artifact, shrunk to fit a fixed bounding box and cached on disk
// keyed by artifact id. Generation is serialized and gated by the
// memory monitor so poster traffic cannot stack decoded frames.
package poster
