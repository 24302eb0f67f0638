// Package ffcmd builds ffmpeg and ffprobe command lines for the preview engine.
//
// ffmpeg argv is produced with ffmpeg-go's stream builder and handed to the
// process supervisor rather than run by ffmpeg-go itself, so every
// subprocess shares one lifecycle. ffprobe has no builder in ffmpeg-go and
// is assembled by hand.
package ffcmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Global flags for every ffmpeg run: no console input, quiet stderr.
var globalArgs = []string{"-nostdin", "-hide_banner", "-loglevel", "error"}

// Seconds formats d as an ffmpeg time offset in seconds ("1", "0.5").
func Seconds(d time.Duration) string {
	if d <= 0 {
		return "0"
	}
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// ScaleFilter caps the width at maxWidth, keeping aspect ratio and an even height.
func ScaleFilter(maxWidth int) string {
	return fmt.Sprintf("scale='min(%d,iw)':-2", maxWidth)
}

// Thumbnail returns ffmpeg arguments that write a single frame taken at
// offset from input to output. The image format follows output's extension.
func Thumbnail(input, output string, offset time.Duration, maxWidth int) []string {
	in := ffmpeg.KwArgs{}
	if offset > 0 {
		in["ss"] = Seconds(offset)
	}

	out := ffmpeg.KwArgs{
		"frames:v": "1",
		"f":        "image2",
		"update":   "1",
		"q:v":      "3",
	}
	if maxWidth > 0 {
		out["vf"] = ScaleFilter(maxWidth)
	}

	return ffmpeg.Input(input, in).
		Output(output, out).
		GlobalArgs(globalArgs...).
		OverWriteOutput().
		GetArgs()
}

// Decoder returns ffmpeg arguments that decode input's video stream to
// raw RGB24 frames of exactly width x height on stdout, as fast as the pipe
// is drained. Audio and subtitles are disabled.
func Decoder(input string, width, height int, startAt time.Duration) []string {
	in := ffmpeg.KwArgs{}
	if startAt > 0 {
		in["ss"] = Seconds(startAt)
	}

	return ffmpeg.Input(input, in).
		Output("pipe:1", ffmpeg.KwArgs{
			"an":      "",
			"sn":      "",
			"f":       "rawvideo",
			"pix_fmt": "rgb24",
			"s":       fmt.Sprintf("%dx%d", width, height),
		}).
		GlobalArgs(globalArgs...).
		GetArgs()
}

// ProbeStream returns ffprobe arguments printing the given entries of the
// first video stream as one headerless CSV line.
func ProbeStream(input string, entries ...string) []string {
	return []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=" + strings.Join(entries, ","),
		"-of", "csv=p=0",
		input,
	}
}

// ProbeFormat returns ffprobe arguments printing container-level entries.
func ProbeFormat(input string, entries ...string) []string {
	return []string{
		"-v", "error",
		"-show_entries", "format=" + strings.Join(entries, ","),
		"-of", "csv=p=0",
		input,
	}
}
