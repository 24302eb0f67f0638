// Package imageio converts decoded RGB24 frames into images, encodes them
// for HTTP clients and loads cached thumbnails for display.
//
// Thumbnails are decoded with libvips when [InitVips] has been called and
// with the imaging package otherwise. JPEG, PNG and WebP thumbnails are
// supported.
package imageio
