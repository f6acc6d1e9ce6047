package lora

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Shelly RPC methods used by the bridge.
const (
	MethodLoRaSendBytes     = "Lora.SendBytes"
	MethodCoverGoToPosition = "Cover.GoToPosition"
	MethodNotifyEvent       = "NotifyEvent"
)

// loraComponent is the component type name of the Shelly LoRa add-on.
const loraComponent = "lora"

// RPCRequest is a Shelly Gen2 RPC request frame sent over MQTT.
// Topic: {device}/rpc
type RPCRequest struct {
	// ID correlates the response. A UUID per request.
	ID string `json:"id"`

	// Src is the topic prefix the device replies to ({src}/rpc).
	Src string `json:"src"`

	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// RPCResponse is the reply a Shelly device publishes to {src}/rpc.
type RPCResponse struct {
	ID     string          `json:"id"`
	Src    string          `json:"src"`
	Dst    string          `json:"dst"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

// RPCError is the error member of an RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SendBytesParams are the parameters of Lora.SendBytes.
type SendBytesParams struct {
	ID   int    `json:"id"`
	Data string `json:"data"` // base64
}

// GoToPositionParams are the parameters of Cover.GoToPosition.
type GoToPositionParams struct {
	ID  int `json:"id"`
	Pos int `json:"pos"`
}

// NewRPCRequest builds a request with a fresh correlation id.
func NewRPCRequest(src, method string, params any) RPCRequest {
	return RPCRequest{
		ID:     uuid.NewString(),
		Src:    src,
		Method: method,
		Params: params,
	}
}

// Notification is a NotifyEvent frame published by a Shelly device.
// Topic: {device}/events/rpc
type Notification struct {
	Src    string `json:"src"`
	Dst    string `json:"dst"`
	Method string `json:"method"`
	Params struct {
		TS     float64       `json:"ts"`
		Events []DeviceEvent `json:"events"`
	} `json:"params"`
}

// DeviceEvent is one entry of a NotifyEvent.
type DeviceEvent struct {
	Component string    `json:"component"`
	ID        int       `json:"id"`
	Event     string    `json:"event"`
	TS        float64   `json:"ts"`
	Data      string    `json:"data,omitempty"`
	Info      EventInfo `json:"info"`
}

// EventInfo carries the payload of a LoRa receive event.
type EventInfo struct {
	Component string  `json:"component,omitempty"`
	ID        int     `json:"id,omitempty"`
	Event     string  `json:"event,omitempty"`
	Data      string  `json:"data,omitempty"`
	RSSI      int     `json:"rssi,omitempty"`
	SNR       float64 `json:"snr,omitempty"`
}

// LoRaComponentName returns the component key of a LoRa add-on, e.g. "lora:100".
func LoRaComponentName(id int) string {
	return loraComponent + ":" + strconv.Itoa(id)
}

// ParseLoRaEvents extracts the receive events of one LoRa component from a
// NotifyEvent payload.
//
// An event matches when its component (or its info component) is
// "lora:<componentID>" and it carries data. Other notifications yield no
// events and no error.
//
// Returns:
//   - []EventInfo: Matching events with Data set to the base64 frame
//   - error: ErrInvalidEvent if the payload is not a JSON notification
func ParseLoRaEvents(payload []byte, componentID int) ([]EventInfo, error) {
	var n Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if n.Method != MethodNotifyEvent {
		return nil, nil
	}

	want := LoRaComponentName(componentID)
	var out []EventInfo
	for _, ev := range n.Params.Events {
		if ev.Component != want && ev.Info.Component != want {
			continue
		}
		info := ev.Info
		if info.Data == "" {
			info.Data = ev.Data
		}
		if info.Data == "" {
			continue
		}
		info.Component = want
		info.ID = componentID
		out = append(out, info)
	}
	return out, nil
}
