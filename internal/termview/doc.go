// Package termview shows preview frames in a terminal with 24-bit colour
// half-block characters and reads single keypresses in raw mode.
package termview
