package ble

import (
	"time"

	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/mqtt"
)

// BridgeName is the protocol segment of every BLE topic.
const BridgeName = "ble"

// Rejection reasons raised by the bridge itself. Decoder rejections use the
// ble.Reason labels.
const (
	ReasonInvalidScan = "invalid_scan"
)

// ButtonEventMessage is published for every decoded PTM215B telegram.
// Topic: graylogic/event/ble/button
type ButtonEventMessage struct {
	Address   string    `json:"address"`
	Button    int       `json:"button"`
	Pressed   bool      `json:"pressed"`
	Action    uint8     `json:"action"`
	Sequence  uint32    `json:"sequence"`
	Fired     bool      `json:"fired"`
	Timestamp time.Time `json:"timestamp"`
}

// StateTopic returns the retained state topic of a device.
// Example: graylogic/state/ble/bc:02:6e:c3:ce:cc
func StateTopic(address string) string {
	return mqtt.Topics{}.BridgeState(BridgeName, address)
}

// ButtonEventTopic returns the topic of button events.
func ButtonEventTopic() string {
	return mqtt.Topics{}.BridgeEvent(BridgeName, "button")
}
