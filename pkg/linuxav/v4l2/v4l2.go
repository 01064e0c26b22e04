//go:build linux

// Package v4l2 provides pure Go bindings to the parts of the Video4Linux2
// (V4L2) API needed to discover capture nodes and hold them open.
//
// This package does not use cgo, enabling simple cross-compilation for
// different Linux architectures (amd64, arm64, arm).
//
// # Node Enumeration
//
// ListNodes walks /sys/class/video4linux and queries every node, including
// the ones that are not video capture devices, so callers can decide what
// to filter:
//
//	nodes, err := v4l2.ListNodes()
//	for _, n := range nodes {
//	    if n.Caps.IsVideoCapture() {
//	        fmt.Printf("%s: %s (%s)\n", n.DevicePath, n.Card, n.StableID)
//	    }
//	}
//
// # Opening Devices
//
// Open returns a handle that keeps the node's file descriptor alive until
// Close:
//
//	dev, err := v4l2.Open("/dev/video0")
//	defer dev.Close()
package v4l2
