//go:build linux

package alsa

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Device is one PCM with a capture stream.
type Device struct {
	CardNumber   int
	CardID       string
	CardName     string
	DeviceNumber int
	DeviceName   string
	Class        PCMClass
	Subdevices   int
	ALSADevice   string // hw:X,Y
}

// StableID identifies the PCM by card ID rather than card number, which
// survives reordering across reboots.
func (d Device) StableID() string {
	return FormatStableID(d.CardID, d.DeviceNumber)
}

// FormatALSADevice creates an ALSA device string from card and device numbers.
func FormatALSADevice(cardNum, deviceNum int) string {
	return "hw:" + strconv.Itoa(cardNum) + "," + strconv.Itoa(deviceNum)
}

// FormatStableID creates a hw:CARD=<id>,DEV=<n> device string.
func FormatStableID(cardID string, deviceNum int) string {
	return "hw:CARD=" + cardID + ",DEV=" + strconv.Itoa(deviceNum)
}

func controlPath(card int) string {
	return fmt.Sprintf("/dev/snd/controlC%d", card)
}

// ListCaptureDevices returns every capture PCM on every card.
func ListCaptureDevices() ([]Device, error) {
	var devices []Device

	for card := 0; ; card++ {
		fd, err := unix.Open(controlPath(card), unix.O_RDONLY|unix.O_CLOEXEC, 0)
		if err != nil {
			if errors.Is(err, unix.ENOENT) || os.IsNotExist(err) {
				break
			}
			continue
		}

		cardDevices, err := listCard(fd, card)
		unix.Close(fd)
		if err != nil {
			continue
		}
		devices = append(devices, cardDevices...)
	}

	return devices, nil
}

func listCard(fd, card int) ([]Device, error) {
	info := sndCtlCardInfo{}
	if err := ioctl(fd, sndrvCtlIoctlCardInfo, unsafe.Pointer(&info)); err != nil {
		return nil, err
	}

	var devices []Device
	next := int32(-1)
	for {
		if err := ioctl(fd, sndrvCtlIoctlPCMNextDevice, unsafe.Pointer(&next)); err != nil || next < 0 {
			break
		}

		pcm, err := pcmInfo(fd, int(next))
		if err != nil {
			// no capture stream on this PCM
			continue
		}

		devices = append(devices, Device{
			CardNumber:   card,
			CardID:       cstr(info.id[:]),
			CardName:     cstr(info.name[:]),
			DeviceNumber: int(next),
			DeviceName:   cstr(pcm.name[:]),
			Class:        PCMClass(pcm.devClass),
			Subdevices:   int(pcm.subdevicesCount),
			ALSADevice:   FormatALSADevice(card, int(next)),
		})
	}
	return devices, nil
}

func pcmInfo(fd, device int) (*sndPCMInfo, error) {
	pcm := &sndPCMInfo{
		device:    uint32(device),
		subdevice: 0,
		stream:    StreamCapture,
	}
	if err := ioctl(fd, sndrvCtlIoctlPCMInfo, unsafe.Pointer(pcm)); err != nil {
		return nil, err
	}
	return pcm, nil
}

// Control is an open card control node bound to one capture PCM.
type Control struct {
	Card   int
	Device int
	fd     int
}

// OpenControl opens the card's control node and verifies that the capture
// PCM still exists. The control node is not exclusive, so holding it does
// not block other capture clients.
func OpenControl(card, device int) (*Control, error) {
	fd, err := unix.Open(controlPath(card), unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", controlPath(card), err)
	}

	if _, err := pcmInfo(fd, device); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("capture PCM %s unavailable: %w", FormatALSADevice(card, device), err)
	}

	return &Control{Card: card, Device: device, fd: fd}, nil
}

// Close releases the control node. It is safe to call more than once.
func (c *Control) Close() error {
	if c.fd < 0 {
		return nil
	}
	err := unix.Close(c.fd)
	c.fd = -1
	return err
}
