package termview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ErrNotTerminal is returned by Open when stdin or stdout is redirected.
var ErrNotTerminal = errors.New("not a terminal")

// Key is a decoded keypress.
type Key int

const (
	KeyOther Key = iota
	KeyPause
	KeyQuit
)

// ParseKey maps a raw input byte: space toggles pause; q, Esc and Ctrl-C quit.
func ParseKey(b byte) Key {
	switch b {
	case ' ':
		return KeyPause
	case 'q', 'Q', 0x1b, 0x03:
		return KeyQuit
	default:
		return KeyOther
	}
}

// Size returns the size of the terminal on f, or ErrNotTerminal.
func Size(f *os.File) (cols, rows int, err error) {
	if !term.IsTerminal(int(f.Fd())) {
		return 0, 0, ErrNotTerminal
	}
	return term.GetSize(int(f.Fd()))
}

// Terminal holds stdin in raw mode so single keypresses arrive unbuffered.
type Terminal struct {
	in    *os.File
	out   *os.File
	state *term.State
}

// Open puts stdin into raw mode. Restore must be called before exiting.
func Open() (*Terminal, error) {
	in, out := os.Stdin, os.Stdout
	if !term.IsTerminal(int(in.Fd())) || !term.IsTerminal(int(out.Fd())) {
		return nil, ErrNotTerminal
	}
	state, err := term.MakeRaw(int(in.Fd()))
	if err != nil {
		return nil, fmt.Errorf("failed to enter raw mode: %w", err)
	}
	return &Terminal{in: in, out: out, state: state}, nil
}

// Out is the terminal's output stream.
func (t *Terminal) Out() io.Writer { return t.out }

// Size returns the terminal size in cells.
func (t *Terminal) Size() (cols, rows int, err error) {
	return Size(t.out)
}

// Restore leaves raw mode.
func (t *Terminal) Restore() error {
	return term.Restore(int(t.in.Fd()), t.state)
}

// Keys delivers keypresses until ctx ends or input fails. The reading
// goroutine stays blocked in Read until the next keypress or exit.
func (t *Terminal) Keys(ctx context.Context) <-chan Key {
	return readKeys(ctx, t.in)
}

func readKeys(ctx context.Context, r io.Reader) <-chan Key {
	keys := make(chan Key, 8)
	go func() {
		defer close(keys)
		buf := make([]byte, 16)
		for {
			n, err := r.Read(buf)
			for _, b := range buf[:n] {
				select {
				case keys <- ParseKey(b):
				case <-ctx.Done():
					return
				}
			}
			if err != nil || ctx.Err() != nil {
				return
			}
		}
	}()
	return keys
}
