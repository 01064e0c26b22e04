package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/smazurov/capturebridge/internal/devices"
	"github.com/smazurov/capturebridge/internal/logging"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"capturebridge.toml"`

	// Device settings
	DeviceKind    string `help:"Capture category to enumerate (video, audio)" short:"k" default:"video" toml:"devices.kind" env:"DEVICES_KIND"`
	DeviceBackend string `help:"Enumeration backend (empty selects the platform default)" default:"" toml:"devices.backend" env:"DEVICES_BACKEND"`

	// Bridge settings
	BridgeHotplugClass  string `help:"Managed class receiving device change callbacks" default:"org/capturebridge/CaptureDevices" toml:"bridge.hotplug_class" env:"BRIDGE_HOTPLUG_CLASS"`
	BridgeHotplugMethod string `help:"Static method invoked on device change" default:"devicesChangedCallback" toml:"bridge.hotplug_method" env:"BRIDGE_HOTPLUG_METHOD"`
	BridgeLogClass      string `help:"Managed class receiving forwarded diagnostics" default:"org/capturebridge/NativeLog" toml:"bridge.log_class" env:"BRIDGE_LOG_CLASS"`
	BridgeLogMethod     string `help:"Static method receiving forwarded diagnostics" default:"log" toml:"bridge.log_method" env:"BRIDGE_LOG_METHOD"`
	BridgeLoggerClass   string `help:"Managed class holding the static sLog logger" default:"org/capturebridge/CaptureDevices" toml:"bridge.logger_class" env:"BRIDGE_LOGGER_CLASS"`
	BridgeLoggerField   string `help:"Static field of the logger class holding the logger" default:"sLog" toml:"bridge.logger_field" env:"BRIDGE_LOGGER_FIELD"`
	BridgeLoggerSig     string `help:"Type signature of the logger field" default:"Lorg/jitsi/util/Logger;" toml:"bridge.logger_sig" env:"BRIDGE_LOGGER_SIG"`
	BridgeLogCache      bool   `help:"Cache the resolved diagnostic method" default:"false" toml:"bridge.log_cache" env:"BRIDGE_LOG_CACHE"`
	BridgeForwardLogs   bool   `help:"Forward Go log records to the managed side" default:"true" toml:"bridge.forward_logs" env:"BRIDGE_FORWARD_LOGS"`

	// Hotplug settings
	HotplugDebounce   string `help:"Coalescing window for device change bursts" default:"500ms" toml:"hotplug.debounce" env:"HOTPLUG_DEBOUNCE"`
	HotplugInterval   string `help:"Poll interval where no kernel notifications exist" default:"2s" toml:"hotplug.interval" env:"HOTPLUG_INTERVAL"`
	HotplugSubsystems string `help:"Comma separated uevent subsystems to watch" default:"video4linux,sound" toml:"hotplug.subsystems" env:"HOTPLUG_SUBSYSTEMS"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8091" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings
	AuthUsername string `help:"Basic auth username (empty disables auth)" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// NATS settings
	NatsURL      string `help:"NATS server URL (empty disables publishing)" default:"" toml:"nats.url" env:"NATS_URL"`
	NatsSubject  string `help:"NATS subject prefix" default:"capturebridge" toml:"nats.subject" env:"NATS_SUBJECT"`
	NatsEmbedded bool   `help:"Run an embedded NATS server when no URL is set" default:"false" toml:"nats.embedded" env:"NATS_EMBEDDED"`
	NatsLogs     bool   `help:"Also publish log entries to NATS" default:"false" toml:"nats.logs" env:"NATS_LOGS"`

	// JVM settings
	JVMLibPath   string `help:"Path to libjvm" default:"" toml:"jvm.lib_path" env:"JVM_LIB_PATH"`
	JVMClassPath string `help:"Class path for the managed side" default:"" toml:"jvm.class_path" env:"JVM_CLASS_PATH"`
	JVMArgs      string `help:"Comma separated extra VM options" default:"" toml:"jvm.args" env:"JVM_ARGS"`
	JVMAttach    bool   `help:"Attach to a JVM already running in the process instead of creating one" default:"false" toml:"jvm.attach" env:"JVM_ATTACH"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingForward string `help:"Minimum level forwarded to the managed side" default:"info" toml:"logging.forward" env:"LOGGING_FORWARD"`
	LoggingDevices string `help:"Devices logging level" default:"info" toml:"logging.devices" env:"LOGGING_DEVICES"`
	LoggingBridge  string `help:"Bridge logging level" default:"info" toml:"logging.bridge" env:"LOGGING_BRIDGE"`
	LoggingHotplug string `help:"Hotplug logging level" default:"info" toml:"logging.hotplug" env:"LOGGING_HOTPLUG"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingNATS    string `help:"NATS logging level" default:"info" toml:"logging.nats" env:"LOGGING_NATS"`
}

// Logging returns the logging configuration carried by the options.
func (o *Options) Logging() logging.Config {
	return logging.Config{
		Level:   o.LoggingLevel,
		Format:  o.LoggingFormat,
		Forward: o.LoggingForward,
		Modules: map[string]string{
			"devices": o.LoggingDevices,
			"bridge":  o.LoggingBridge,
			"hotplug": o.LoggingHotplug,
			"api":     o.LoggingAPI,
			"nats":    o.LoggingNATS,
		},
	}
}

// Kind parses DeviceKind.
func (o *Options) Kind() (devices.Kind, error) {
	return devices.ParseKind(o.DeviceKind)
}

// Debounce parses HotplugDebounce.
func (o *Options) Debounce() (time.Duration, error) {
	return parseDuration("hotplug.debounce", o.HotplugDebounce)
}

// PollInterval parses HotplugInterval.
func (o *Options) PollInterval() (time.Duration, error) {
	d, err := parseDuration("hotplug.interval", o.HotplugInterval)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("hotplug.interval must be positive, got %s", o.HotplugInterval)
	}
	return d, nil
}

// Subsystems splits HotplugSubsystems.
func (o *Options) Subsystems() []string {
	return splitList(o.HotplugSubsystems)
}

// VMArgs splits JVMArgs.
func (o *Options) VMArgs() []string {
	return splitList(o.JVMArgs)
}

func parseDuration(key, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
