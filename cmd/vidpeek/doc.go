// Command vidpeek previews videos from the command line with the same
// engine previewd uses.
//
// Usage:
//
//	vidpeek <command> <path>
//
// Commands:
//
//	probe   Print the metadata ffprobe reports for a file as JSON. Fields
//	        that could not be read are omitted.
//
//	thumb   Extract the still for a file into the thumbnail cache, or reuse
//	        the cached one, and print its path. On a terminal the still is
//	        also drawn below the path.
//
//	warm    Extract stills for every video under a directory using a pool
//	        of workers (PREVIEW_WORKERS overrides its size). Extraction
//	        pauses while memory use is critical.
//
//	play    Play a file in the terminal at the terminal's width. Space
//	        pauses and resumes; q, Esc or Ctrl-C quits.
//
// Environment:
//
//	FFMPEG_PATH   - ffmpeg executable (default: ffmpeg on PATH)
//	FFPROBE_PATH  - ffprobe executable (default: ffprobe on PATH)
//	CACHE_DIR     - cache root; stills go to CACHE_DIR/thumbnails
//	LOG_LEVEL     - debug, info, warn or error (default: warn)
package main
