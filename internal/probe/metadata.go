package probe

import (
	"math"
	"strconv"
	"strings"
)

// Metadata describes a video stream. Field names match the wire format
// returned by the analyze endpoint.
type Metadata struct {
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	DurationSeconds float64 `json:"durationSeconds"`
	FrameRate       float64 `json:"frameRate"`

	// Codec is the source video codec name, kept for logging and
	// transcode diagnostics. Not part of the wire format.
	Codec string `json:"-"`
}

// ffprobeOutput mirrors the parts of `ffprobe -print_format json` output
// this package consumes. ffprobe reports numeric durations as strings.
type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Duration     string `json:"duration"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

// extractMetadata pulls the metadata fields from decoded ffprobe output.
// Returns ErrUnsupportedFormat when no video stream is present.
func extractMetadata(out ffprobeOutput) (Metadata, error) {
	var video *ffprobeStream
	for i := range out.Streams {
		if out.Streams[i].CodecType == "video" {
			video = &out.Streams[i]
			break
		}
	}
	if video == nil {
		return Metadata{}, ErrUnsupportedFormat
	}

	duration := parseSeconds(video.Duration)
	if duration == 0 {
		duration = parseSeconds(out.Format.Duration)
	}

	return Metadata{
		Width:           clampInt(video.Width),
		Height:          clampInt(video.Height),
		DurationSeconds: duration,
		FrameRate:       ParseRatio(video.AvgFrameRate),
		Codec:           video.CodecName,
	}, nil
}

// ParseRatio converts an ffprobe rational like "30000/1001" to a float.
// Plain decimal strings parse directly. Empty strings, zero or invalid
// denominators, unparseable parts, and negative or non-finite results
// all yield 0.
func ParseRatio(value string) float64 {
	if value == "" {
		return 0
	}

	if num, den, found := strings.Cut(value, "/"); found {
		denF, err := strconv.ParseFloat(den, 64)
		if err != nil || denF == 0 {
			return 0
		}
		numF, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0
		}
		return clampFloat(numF / denF)
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return clampFloat(f)
}

// parseSeconds converts an ffprobe duration string to seconds, treating
// absent or malformed values as 0.
func parseSeconds(value string) float64 {
	if value == "" {
		return 0
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return clampFloat(f)
}

// clampFloat enforces the non-negative finite metadata invariant.
func clampFloat(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

func clampInt(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
