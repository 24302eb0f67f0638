package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"media-preview/internal/logging"
	"media-preview/internal/playback"
	"media-preview/internal/probe"
	"media-preview/internal/process"
	"media-preview/internal/termview"
)

// renderTick is how often the player polls for a new frame.
const renderTick = 15 * time.Millisecond

// frameSource is the part of *playback.Session the player drives.
type frameSource interface {
	Poll() playback.State
	AcquireLatestFrame(dst *playback.Frame) bool
	Pause()
	Resume()
	Stop()
	Stats() playback.Stats
	LastError() error
}

func runPlay(ctx context.Context, sup *process.Supervisor, e env, path string) error {
	t, err := termview.Open()
	if err != nil {
		return err
	}
	defer func() { _ = t.Restore() }()

	cols, rows, err := t.Size()
	if err != nil {
		return err
	}
	r := termview.NewRenderer(t.Out(), cols, rows)
	boxW, _ := r.PixelBox()

	// Log lines would tear the picture.
	logging.SetLevel(logging.LevelError)

	prober := probe.NewService(sup, probe.Config{FFprobePath: e.ffprobe})
	session := playback.NewSession(sup, prober, playback.Config{
		FFmpegPath: e.ffmpeg,
		MaxWidth:   boxW,
	})
	if err := session.Start(ctx, playback.StartOptions{Path: path}); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	defer signal.Stop(winch)

	if err := r.Begin(); err != nil {
		session.Stop()
		return err
	}
	state, err := play(ctx, session, r, t.Keys(ctx), winch, t.Size, filepath.Base(path))
	if endErr := r.End(); endErr != nil && err == nil {
		err = endErr
	}
	if err != nil {
		return err
	}

	st := session.Stats()
	fmt.Fprintf(t.Out(), "%s: %s after %d frames (%d shown, %d dropped)\r\n",
		filepath.Base(path), state, st.Decoded, st.Presented, st.Dropped)
	if state == playback.Error {
		return session.LastError()
	}
	return nil
}

// play runs the render loop until the session ends, the user quits or ctx
// is cancelled. It always stops the session before returning.
func play(ctx context.Context, s frameSource, r *termview.Renderer, keys <-chan termview.Key,
	winch <-chan os.Signal, size func() (int, int, error), title string) (playback.State, error) {
	defer s.Stop()

	ticker := time.NewTicker(renderTick)
	defer ticker.Stop()

	var frame playback.Frame
	paused := false
	for {
		select {
		case <-ctx.Done():
			return playback.Stopped, nil

		case k, ok := <-keys:
			if !ok {
				keys = nil
				continue
			}
			switch k {
			case termview.KeyQuit:
				return playback.Stopped, nil
			case termview.KeyPause:
				if paused {
					s.Resume()
				} else {
					s.Pause()
				}
				paused = !paused
			}

		case <-winch:
			if cols, rows, err := size(); err == nil {
				r.Resize(cols, rows)
				if err := r.Begin(); err != nil {
					return playback.Error, err
				}
			}

		case <-ticker.C:
			state := s.Poll()
			if s.AcquireLatestFrame(&frame) {
				if err := r.DrawFrame(frame.Pix, frame.Width, frame.Height); err != nil {
					return playback.Error, err
				}
			}
			if err := r.Status(statusLine(title, state, s.Stats())); err != nil {
				return playback.Error, err
			}
			switch state {
			case playback.Ended, playback.Error:
				return state, nil
			case playback.Stopped:
				return state, errors.New("playback stopped unexpectedly")
			}
		}
	}
}

func statusLine(title string, state playback.State, st playback.Stats) string {
	return fmt.Sprintf(" %s  %s  frame %d  dropped %d  [space] pause  [q] quit",
		title, state, st.Presented, st.Dropped)
}
