package lora

import (
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/mqtt"
)

// BridgeName is the protocol segment of every LoRa topic.
const BridgeName = "lora"

// Frame directions recorded in telemetry.
const (
	DirectionTx = "tx"
	DirectionRx = "rx"
)

// Rejection reasons raised by the bridge itself. Decode rejections use the
// framing.Reason labels.
const (
	ReasonInvalidCoverCommand = "invalid_cover_command"
	ReasonCoverNotAllowed     = "cover_not_allowed"
	ReasonInvalidSensorUpdate = "invalid_sensor_update"
)

// MessageEvent is published for every accepted message.
// Topic: graylogic/event/lora/message
type MessageEvent struct {
	Message   string    `json:"message"`
	Source    string    `json:"source,omitempty"`
	RSSI      int       `json:"rssi,omitempty"`
	SNR       float64   `json:"snr,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CoverState is published after a cover command was forwarded to the device.
// Topic: graylogic/state/lora/cover-{id}
// QoS: 1, Retained: Yes
type CoverState struct {
	ID        int       `json:"id"`
	Position  int       `json:"position"`
	Device    string    `json:"device"`
	Source    string    `json:"source"` // "radio" or "local"
	Timestamp time.Time `json:"timestamp"`
}

// SensorState is published for every accepted sensor update.
// Topic: graylogic/state/lora/sensor-{kind}{id}
// QoS: 1, Retained: Yes
type SensorState struct {
	Kind      SensorKind `json:"kind"`
	ID        int        `json:"id"`
	Value     float64    `json:"value"`
	Unit      string     `json:"unit,omitempty"`
	Open      *bool      `json:"open,omitempty"` // door/window only
	Source    string     `json:"source,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// SendCommand is the payload of graylogic/command/lora/send.
type SendCommand struct {
	Message string `json:"message"`
}

// MessageTopic returns the event topic for accepted messages.
func MessageTopic() string {
	return mqtt.Topics{}.BridgeEvent(BridgeName, "message")
}

// CoverStateTopic returns the state topic of one cover.
// Example: graylogic/state/lora/cover-0
func CoverStateTopic(id int) string {
	return mqtt.Topics{}.BridgeState(BridgeName, coverAddress(id))
}

// SensorStateTopic returns the state topic of one remote sensor.
// Example: graylogic/state/lora/sensor-tm0
func SensorStateTopic(kind SensorKind, id int) string {
	return mqtt.Topics{}.BridgeState(BridgeName, sensorAddress(kind, id))
}

// SendCommandTopic returns the topic for MQTT-driven text sends.
func SendCommandTopic() string {
	return mqtt.Topics{}.BridgeCommand(BridgeName, "send")
}

// CoverCommandTopic returns the topic for MQTT-driven cover commands.
func CoverCommandTopic() string {
	return mqtt.Topics{}.BridgeCommand(BridgeName, "cover")
}

func coverAddress(id int) string {
	return "cover-" + strconv.Itoa(id)
}
