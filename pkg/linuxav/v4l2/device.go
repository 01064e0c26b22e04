//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	sysClassDir = "/sys/class/video4linux"
	byIDDir     = "/dev/v4l/by-id"
	byPathDir   = "/dev/v4l/by-path"
)

// Node describes one /dev/videoN node as reported by VIDIOC_QUERYCAP.
type Node struct {
	DevicePath string // /dev/video0
	Driver     string
	Card       string
	BusInfo    string
	Index      int
	StableID   string // from /dev/v4l/by-id/ or synthesized from bus info
	Caps       Caps
	// Err is set when the node could not be opened or queried.
	Err error
}

// ListNodes returns every video4linux node in sysfs order. Nodes that fail
// to open or query are included with Err set.
func ListNodes() ([]Node, error) {
	entries, err := os.ReadDir(sysClassDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Node{}, nil
		}
		return nil, fmt.Errorf("failed to read video4linux directory: %w", err)
	}

	nodes := make([]Node, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "video") {
			continue
		}

		node := Node{
			DevicePath: "/dev/" + name,
			Index:      readSysfsInt(filepath.Join(sysClassDir, name, "index")),
		}

		fd, err := open(node.DevicePath)
		if err != nil {
			slog.With("component", "linuxav").Debug("failed to open video device", "path", node.DevicePath, "error", err)
			node.Err = err
			nodes = append(nodes, node)
			continue
		}

		c, err := queryCap(fd)
		unix.Close(fd)
		if err != nil {
			slog.With("component", "linuxav").Debug("failed to query device capabilities", "path", node.DevicePath, "error", err)
			node.Err = err
			nodes = append(nodes, node)
			continue
		}

		node.Driver = cstr(c.driver[:])
		node.Card = cstr(c.card[:])
		node.BusInfo = cstr(c.busInfo[:])
		node.Caps = effectiveCaps(c)
		node.StableID = findStableID(byIDDir, name, node.Index)
		if node.StableID == "" {
			node.StableID = syntheticID(node.BusInfo, node.Index)
		}

		nodes = append(nodes, node)
	}

	return nodes, nil
}

// Device is an open V4L2 node.
type Device struct {
	Path string
	Caps Caps
	fd   int
}

// Open opens path and confirms it answers VIDIOC_QUERYCAP.
func Open(path string) (*Device, error) {
	fd, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	c, err := queryCap(fd)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("query %s: %w", path, err)
	}

	return &Device{Path: path, Caps: effectiveCaps(c), fd: fd}, nil
}

// Fd returns the underlying file descriptor, or -1 after Close.
func (d *Device) Fd() int {
	return d.fd
}

// Close releases the file descriptor. It is safe to call more than once.
func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

// ResolvePath converts a stable device ID to an openable path. Full /dev
// paths are returned unchanged.
func ResolvePath(deviceID string) (string, error) {
	if strings.HasPrefix(deviceID, "/dev/") {
		return deviceID, nil
	}

	for _, dir := range []string{byIDDir, byPathDir} {
		p := filepath.Join(dir, deviceID)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no stable symlink found for device ID %s: %w", deviceID, errors.ErrUnsupported)
}

// findStableID looks in dir for a symlink pointing at deviceName whose name
// carries the matching -video-indexN suffix.
func findStableID(dir, deviceName string, index int) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	suffix := fmt.Sprintf("-video-index%d", index)
	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		target, err := os.Readlink(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if filepath.Base(target) == deviceName && strings.HasSuffix(entry.Name(), suffix) {
			return entry.Name()
		}
	}
	return ""
}

// syntheticID builds a by-path style identifier when udev created no by-id
// link, which is common for platform capture blocks.
func syntheticID(busInfo string, index int) string {
	if strings.HasPrefix(busInfo, "usb-") {
		return fmt.Sprintf("%s-video-index%d", busInfo, index)
	}
	return fmt.Sprintf("platform-%s-video-index%d", busInfo, index)
}

func readSysfsInt(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	val, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return val
}
