package termview

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"strconv"

	"media-preview/internal/imageio"
)

const (
	esc         = "\x1b["
	upperHalf   = "▀"
	resetColor  = esc + "0m"
	hideCursor  = esc + "?25l"
	showCursor  = esc + "?25h"
	clearScreen = esc + "2J"
	home        = esc + "H"
	clearLine   = esc + "2K"
)

// Renderer draws frames as rows of upper half blocks: the foreground colour
// paints the top pixel of each cell and the background the bottom one, so
// a terminal of cols x rows shows cols x 2*(rows-1) pixels plus a status line.
type Renderer struct {
	out  io.Writer
	buf  bytes.Buffer
	cols int
	rows int
}

// NewRenderer creates a renderer for a terminal of cols x rows cells.
func NewRenderer(out io.Writer, cols, rows int) *Renderer {
	r := &Renderer{out: out}
	r.Resize(cols, rows)
	return r
}

// Resize records a new terminal size.
func (r *Renderer) Resize(cols, rows int) {
	r.cols, r.rows = max(cols, 1), max(rows, 2)
}

// PixelBox is the largest image the renderer can show.
func (r *Renderer) PixelBox() (width, height int) {
	return r.cols, (r.rows - 1) * 2
}

// Begin hides the cursor and clears the screen.
func (r *Renderer) Begin() error {
	_, err := io.WriteString(r.out, hideCursor+clearScreen+home)
	return err
}

// End restores the cursor and colours and moves below the picture.
func (r *Renderer) End() error {
	_, err := fmt.Fprintf(r.out, "%s%s%s%d;1H\r\n", resetColor, showCursor, esc, r.rows)
	return err
}

// DrawFrame draws a packed RGB24 frame, scaled down to fit if needed.
func (r *Renderer) DrawFrame(pix []byte, width, height int) error {
	img, err := imageio.FrameImage(pix, width, height)
	if err != nil {
		return err
	}
	return r.Draw(img)
}

// Draw paints img from the top-left corner in a single write.
func (r *Renderer) Draw(img image.Image) error {
	bw, bh := r.PixelBox()
	img = imageio.Fit(img, bw, bh)

	r.buf.Reset()
	r.buf.WriteString(home)
	Encode(&r.buf, img)
	_, err := r.out.Write(r.buf.Bytes())
	return err
}

// Status writes line on the bottom row, truncated to the terminal width.
func (r *Renderer) Status(line string) error {
	if len(line) > r.cols {
		line = line[:r.cols]
	}
	_, err := fmt.Fprintf(r.out, "%s%s%d;1H%s%s", resetColor, esc, r.rows, clearLine, line)
	return err
}

// Encode appends the half-block rendering of img to buf, one text row per
// two pixel rows. An odd last row is paired with black. Colour escapes are
// only emitted when they change.
func Encode(buf *bytes.Buffer, img image.Image) {
	b := img.Bounds()
	var lastFG, lastBG [3]uint8
	first := true

	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		for x := b.Min.X; x < b.Max.X; x++ {
			fg := rgb(img, x, y)
			var bg [3]uint8
			if y+1 < b.Max.Y {
				bg = rgb(img, x, y+1)
			}
			if first || fg != lastFG {
				writeColor(buf, "38", fg)
				lastFG = fg
			}
			if first || bg != lastBG {
				writeColor(buf, "48", bg)
				lastBG = bg
			}
			first = false
			buf.WriteString(upperHalf)
		}
		buf.WriteString(resetColor)
		buf.WriteString("\r\n")
		first = true
	}
}

func rgb(img image.Image, x, y int) [3]uint8 {
	r, g, b, _ := img.At(x, y).RGBA()
	return [3]uint8{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)}
}

func writeColor(buf *bytes.Buffer, layer string, c [3]uint8) {
	buf.WriteString(esc)
	buf.WriteString(layer)
	buf.WriteString(";2;")
	buf.WriteString(strconv.Itoa(int(c[0])))
	buf.WriteByte(';')
	buf.WriteString(strconv.Itoa(int(c[1])))
	buf.WriteByte(';')
	buf.WriteString(strconv.Itoa(int(c[2])))
	buf.WriteByte('m')
}
