package lora

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// sensorPrefix starts every sensor value push, e.g. "snr-tm0:21.5".
const sensorPrefix = "snr-"

// SensorKind is the two-letter component code of a sensor update.
type SensorKind string

// Sensor kinds sent by the BTHome emitter script.
const (
	SensorDoorWindow  SensorKind = "dw"
	SensorTemperature SensorKind = "tm"
	SensorHumidity    SensorKind = "hm"
)

// Door/window contact values.
const (
	ContactClosed = 0
	ContactOpen   = 1
)

// Unit returns the measurement unit, or "" for a contact.
func (k SensorKind) Unit() string {
	switch k {
	case SensorTemperature:
		return "°C"
	case SensorHumidity:
		return "%"
	}
	return ""
}

func (k SensorKind) valid() bool {
	switch k {
	case SensorDoorWindow, SensorTemperature, SensorHumidity:
		return true
	}
	return false
}

// SensorUpdate is one value pushed by a remote sensor.
type SensorUpdate struct {
	Kind  SensorKind `json:"kind"`
	ID    int        `json:"id"`
	Value float64    `json:"value"`
}

// IsSensorUpdate reports whether msg carries the sensor prefix and should be
// handed to ParseSensorUpdate.
func IsSensorUpdate(msg string) bool {
	return strings.HasPrefix(msg, sensorPrefix)
}

// ParseSensorUpdate parses a "snr-<kind><id>:<value>" message.
//
// Parameters:
//   - msg: Decoded message text, e.g. "snr-dw0:1" or "snr-hm2:48.5"
//
// Returns:
//   - SensorUpdate: The parsed update
//   - error: ErrInvalidSensorUpdate for a missing prefix, unknown kind,
//     non-decimal id, non-finite value or a contact value other than 0/1
func ParseSensorUpdate(msg string) (SensorUpdate, error) {
	body, ok := strings.CutPrefix(msg, sensorPrefix)
	if !ok {
		return SensorUpdate{}, fmt.Errorf("%w: missing %q prefix in %q", ErrInvalidSensorUpdate, sensorPrefix, msg)
	}

	component, raw, ok := strings.Cut(body, ":")
	if !ok || strings.Contains(raw, ":") {
		return SensorUpdate{}, fmt.Errorf("%w: want exactly one ':' in %q", ErrInvalidSensorUpdate, msg)
	}
	if len(component) < 2 {
		return SensorUpdate{}, fmt.Errorf("%w: component %q too short", ErrInvalidSensorUpdate, component)
	}

	kind := SensorKind(component[:2])
	if !kind.valid() {
		return SensorUpdate{}, fmt.Errorf("%w: unknown sensor kind %q", ErrInvalidSensorUpdate, kind)
	}
	id, err := parseDecimal(component[2:])
	if err != nil {
		return SensorUpdate{}, fmt.Errorf("%w: sensor id: %v", ErrInvalidSensorUpdate, err)
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return SensorUpdate{}, fmt.Errorf("%w: value %q is not a number", ErrInvalidSensorUpdate, raw)
	}
	if kind == SensorDoorWindow && value != ContactClosed && value != ContactOpen {
		return SensorUpdate{}, fmt.Errorf("%w: contact value %q must be 0 or 1", ErrInvalidSensorUpdate, raw)
	}

	return SensorUpdate{Kind: kind, ID: id, Value: value}, nil
}

// String renders the update in wire form, e.g. "snr-tm0:21.5".
func (u SensorUpdate) String() string {
	return sensorPrefix + string(u.Kind) + strconv.Itoa(u.ID) + ":" + strconv.FormatFloat(u.Value, 'f', -1, 64)
}

func sensorAddress(kind SensorKind, id int) string {
	return "sensor-" + string(kind) + strconv.Itoa(id)
}
