//go:build linux

// Package alsa finds PCM capture devices through the ALSA control interface
// without cgo.
//
// ListCaptureDevices walks /dev/snd/controlC* and reports every PCM that
// offers a capture substream. OpenControl reopens one device's card and
// checks the capture stream is still there; the handle keeps the card open
// until Close.
package alsa
