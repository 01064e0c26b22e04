// Package nats publishes capture bridge activity over NATS and accepts
// control commands from other processes.
//
// # Architecture
//
//   - Client: connection with graceful degradation, JSON publishing and
//     the control subscription
//   - Bridge: subscribes to the event bus and publishes each event
//   - Server: optional embedded NATS server for hosts without a broker
//
// # Subject Hierarchy
//
//	capturebridge.devices.changed      # hotplug notification
//	capturebridge.devices.enumerated   # device list after enumeration
//	capturebridge.devices.skipped      # candidate left out of enumeration
//	capturebridge.relay.dropped        # buffer not delivered
//	capturebridge.logs.{level}         # log records, when enabled
//	capturebridge.control              # commands to the bridge
//
// The prefix is configurable. Messaging is fire-and-forget core NATS.
//
// # Debugging with nats CLI
//
// Watch everything the bridge publishes:
//
//	nats sub "capturebridge.>"
//
// Ask the bridge to re-enumerate:
//
//	nats pub capturebridge.control '{"action":"reinitialize","reason":"manual"}'
package nats
