package mqtt

import "fmt"

// Topic prefixes.
//
// Gateway topics use the flat scheme graylogic/{category}/{protocol}/{address}.
const (
	// TopicPrefixBridge is the base for all bridge topics.
	TopicPrefixBridge = "graylogic"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"

	// TopicPrefixScan is the base for raw scan results published by scanners.
	TopicPrefixScan = "graylogic/scan"
)

// Topics provides builders for the gateway's MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.BridgeState("ble", "bc:02:6e:c3:ce:cc")
//	// Returns: "graylogic/state/ble/bc:02:6e:c3:ce:cc"
type Topics struct{}

// =============================================================================
// Bridge Topics
// =============================================================================

// BridgeState returns the topic for state updates from a bridge.
//
// Example: graylogic/state/ble/bc:02:6e:c3:ce:cc
func (Topics) BridgeState(protocol, address string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefixBridge, protocol, address)
}

// BridgeCommand returns the topic for commands to a bridge.
//
// Example: graylogic/command/lora/send
func (Topics) BridgeCommand(protocol, address string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefixBridge, protocol, address)
}

// BridgeEvent returns the topic for one-shot events from a bridge, such as
// button presses or received LoRa messages.
//
// Example: graylogic/event/lora/message
func (Topics) BridgeEvent(protocol, name string) string {
	return fmt.Sprintf("%s/event/%s/%s", TopicPrefixBridge, protocol, name)
}

// BridgeHealth returns the topic for bridge health status.
//
// Example: graylogic/health/lora
func (Topics) BridgeHealth(protocol string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefixBridge, protocol)
}

// ScanResults returns the topic a scanner publishes raw advertisements on.
//
// Example: graylogic/scan/ble/shelly-pro-kitchen
func (Topics) ScanResults(scanner string) string {
	return fmt.Sprintf("%s/ble/%s", TopicPrefixScan, scanner)
}

// =============================================================================
// Shelly RPC Topics
// =============================================================================

// ShellyRPC returns the RPC request topic of a Shelly device.
//
// Example: shellyplus1-a8032ab12345/rpc
func (Topics) ShellyRPC(deviceTopic string) string {
	return deviceTopic + "/rpc"
}

// ShellyEvents returns the topic a Shelly device publishes RPC notifications on.
//
// Example: shellyplus1-a8032ab12345/events/rpc
func (Topics) ShellyEvents(deviceTopic string) string {
	return deviceTopic + "/events/rpc"
}

// ShellyResponse returns the topic a Shelly device replies to for a request
// carrying the given src.
//
// Example: radiogw-1/rpc
func (Topics) ShellyResponse(src string) string {
	return src + "/rpc"
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the online/offline status topic of one gateway instance.
//
// Example: graylogic/system/radiogw/status
func (Topics) SystemStatus(clientID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixSystem, clientID)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllBridgeStates returns a pattern matching all bridge state updates.
//
// Pattern: graylogic/state/+/+
func (Topics) AllBridgeStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefixBridge)
}

// AllScanResults returns a pattern matching every scanner.
//
// Pattern: graylogic/scan/ble/+
func (Topics) AllScanResults() string {
	return fmt.Sprintf("%s/ble/+", TopicPrefixScan)
}

// AllBridgeHealth returns a pattern matching all bridge health updates.
//
// Pattern: graylogic/health/+
func (Topics) AllBridgeHealth() string {
	return fmt.Sprintf("%s/health/+", TopicPrefixBridge)
}
