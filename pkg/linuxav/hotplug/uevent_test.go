package hotplug

import (
	"errors"
	"testing"
)

func TestParseUEvent(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantErr  bool
		expected Event
	}{
		{name: "empty input", input: "", wantErr: true},
		{name: "no @ separator", input: "invalid", wantErr: true},
		{name: "missing action", input: "@/devices/foo", wantErr: true},
		{name: "libudev datagram", input: "libudev\x00\xfe\xed\xca\xfeadd@/devices/foo\x00", wantErr: true},
		{
			name:  "video node added",
			input: "add@/devices/pci0000:00/video4linux/video0\x00ACTION=add\x00SUBSYSTEM=video4linux\x00DEVNAME=video0\x00DEVPATH=/devices/pci0000:00/video4linux/video0\x00",
			expected: Event{
				Action:    "add",
				KObj:      "/devices/pci0000:00/video4linux/video0",
				Subsystem: "video4linux",
				DevName:   "video0",
				DevPath:   "/devices/pci0000:00/video4linux/video0",
			},
		},
		{
			name:  "usb device removed",
			input: "remove@/devices/usb/1-1\x00SUBSYSTEM=usb\x00DEVTYPE=usb_device\x00PRODUCT=1234/5678/0100\x00",
			expected: Event{
				Action:    "remove",
				KObj:      "/devices/usb/1-1",
				Subsystem: "usb",
				DevType:   "usb_device",
			},
		},
		{
			name:     "trailing nulls and bad pairs",
			input:    "change@/devices/sound/card0\x00SUBSYSTEM=sound\x00garbage\x00=x\x00\x00",
			expected: Event{Action: "change", KObj: "/devices/sound/card0", Subsystem: "sound"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseUEvent([]byte(tt.input))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Errorf("Expected ErrMalformed, got %v (%+v)", err, ev)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if ev.Action != tt.expected.Action || ev.KObj != tt.expected.KObj {
				t.Errorf("Expected %s@%s, got %s@%s", tt.expected.Action, tt.expected.KObj, ev.Action, ev.KObj)
			}
			if ev.Subsystem != tt.expected.Subsystem {
				t.Errorf("Expected subsystem %q, got %q", tt.expected.Subsystem, ev.Subsystem)
			}
			if ev.DevType != tt.expected.DevType {
				t.Errorf("Expected devtype %q, got %q", tt.expected.DevType, ev.DevType)
			}
			if ev.DevName != tt.expected.DevName {
				t.Errorf("Expected devname %q, got %q", tt.expected.DevName, ev.DevName)
			}
			if ev.DevPath != tt.expected.DevPath {
				t.Errorf("Expected devpath %q, got %q", tt.expected.DevPath, ev.DevPath)
			}
		})
	}
}

func TestParseUEventKeepsEnvironment(t *testing.T) {
	ev, err := ParseUEvent([]byte("add@/devices/test\x00KEY1=value1\x00KEY2=\x00KEY3=a=b\x00"))
	if err != nil {
		t.Fatalf("ParseUEvent failed: %v", err)
	}
	want := map[string]string{"KEY1": "value1", "KEY2": "", "KEY3": "a=b"}
	if len(ev.Env) != len(want) {
		t.Fatalf("Expected %d env entries, got %v", len(want), ev.Env)
	}
	for k, v := range want {
		if got, ok := ev.Env[k]; !ok || got != v {
			t.Errorf("Env[%q]: expected %q, got %q", k, v, got)
		}
	}
}

func TestIsCaptureNode(t *testing.T) {
	tests := []struct {
		subsystem string
		devname   string
		expected  bool
	}{
		{SubsystemVideo4Linux, "video0", true},
		{SubsystemVideo4Linux, "v4l-subdev0", false},
		{SubsystemSound, "snd/pcmC1D0c", true},
		{SubsystemSound, "snd/pcmC1D0p", false},
		{SubsystemSound, "snd/controlC1", false},
		{SubsystemUSB, "bus/usb/001/004", false},
	}
	for _, tt := range tests {
		t.Run(tt.devname, func(t *testing.T) {
			ev := Event{Subsystem: tt.subsystem, DevName: tt.devname}
			if got := ev.IsCaptureNode(); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestEventNode(t *testing.T) {
	if got := (Event{DevName: "video2"}).Node(); got != "/dev/video2" {
		t.Errorf("Expected /dev/video2, got %q", got)
	}
	if got := (Event{}).Node(); got != "" {
		t.Errorf("Expected empty node, got %q", got)
	}
}

func TestFilter(t *testing.T) {
	video := Event{Subsystem: SubsystemVideo4Linux}
	usb := Event{Subsystem: SubsystemUSB}

	all := NewFilter()
	if !all.Match(video) || !all.Match(usb) {
		t.Error("Expected empty filter to pass everything")
	}

	f := NewFilter(SubsystemVideo4Linux, " ", SubsystemSound)
	if len(f) != 2 {
		t.Errorf("Expected blank subsystem ignored, got %v", f)
	}
	if !f.Match(video) {
		t.Error("Expected video4linux to match")
	}
	if f.Match(usb) {
		t.Error("Expected usb to be filtered")
	}
}
