//go:build linux

package v4l2

import "unsafe"

// v4l2Capability mirrors struct v4l2_capability. It holds no pointers, so
// the layout and the ioctl number are the same on every architecture.
type v4l2Capability struct {
	driver       [16]byte  // offset 0
	card         [32]byte  // offset 16
	busInfo      [32]byte  // offset 48
	version      uint32    // offset 80
	capabilities uint32    // offset 84
	deviceCaps   uint32    // offset 88
	reserved     [3]uint32 // offset 92
}

var _ [104]byte = [unsafe.Sizeof(v4l2Capability{})]byte{}

// VIDIOC_QUERYCAP = _IOR('V', 0, struct v4l2_capability)
const vidiocQuerycap = 0x80685600

// Caps is a V4L2 capability bit set.
type Caps uint32

// Capability flags.
const (
	CapVideoCapture       Caps = 0x00000001
	CapVideoOutput        Caps = 0x00000002
	CapVideoCaptureMplane Caps = 0x00001000
	CapVideoM2MMplane     Caps = 0x00004000
	CapVideoM2M           Caps = 0x00008000
	CapMetaCapture        Caps = 0x00800000
	CapStreaming          Caps = 0x04000000
	CapDeviceCaps         Caps = 0x80000000
)

// IsVideoCapture reports single- or multi-planar capture support.
func (c Caps) IsVideoCapture() bool {
	return c&(CapVideoCapture|CapVideoCaptureMplane) != 0
}

// IsMemToMem reports a codec or scaler node rather than a camera.
func (c Caps) IsMemToMem() bool {
	return c&(CapVideoM2M|CapVideoM2MMplane) != 0
}

// effectiveCaps returns the per-node capabilities when the driver reports
// them, otherwise the whole-device set.
func effectiveCaps(c *v4l2Capability) Caps {
	if Caps(c.capabilities)&CapDeviceCaps != 0 {
		return Caps(c.deviceCaps)
	}
	return Caps(c.capabilities)
}

func queryCap(fd int) (*v4l2Capability, error) {
	c := &v4l2Capability{}
	if err := ioctl(fd, vidiocQuerycap, unsafe.Pointer(c)); err != nil {
		return nil, err
	}
	return c, nil
}
