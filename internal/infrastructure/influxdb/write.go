package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the gateway.
const (
	// MeasurementBLEReading holds one point per decoded advertisement.
	MeasurementBLEReading = "ble_reading"

	// MeasurementLoRaFrame holds one point per LoRa frame sent or received.
	MeasurementLoRaFrame = "lora_frame"
)

// ReadingPoint builds the point for a decoded BLE advertisement.
//
// The device address and decoder kind are tags; the decoded fields plus the
// signal strength are fields. Field values are expected to be float64,
// int64 or bool.
func ReadingPoint(address, kind string, rssi int, fields map[string]any, ts time.Time) *write.Point {
	pointFields := make(map[string]interface{}, len(fields)+1)
	for name, value := range fields {
		pointFields[name] = value
	}
	pointFields["rssi"] = int64(rssi)

	return write.NewPoint(
		MeasurementBLEReading,
		map[string]string{
			"address": address,
			"kind":    kind,
		},
		pointFields,
		ts,
	)
}

// LoRaFramePoint builds the point for a LoRa frame.
//
// Parameters:
//   - direction: "tx" or "rx"
//   - reason: empty for accepted frames, otherwise the rejection label
//   - size: ciphertext length in bytes
func LoRaFramePoint(direction, reason string, size int, ts time.Time) *write.Point {
	accepted := reason == ""
	tags := map[string]string{
		"direction": direction,
	}
	if !accepted {
		tags["reason"] = reason
	}

	return write.NewPoint(
		MeasurementLoRaFrame,
		tags,
		map[string]interface{}{
			"accepted": accepted,
			"bytes":    int64(size),
		},
		ts,
	)
}

// WriteReading records a decoded BLE advertisement.
//
// The write is non-blocking; data is batched and sent asynchronously.
// It is a no-op when the client is not connected.
//
// Example:
//
//	client.WriteReading("bc:02:6e:c3:ce:cc", "bparasite", -71, rec.Fields(), time.Now())
func (c *Client) WriteReading(address, kind string, rssi int, fields map[string]any, ts time.Time) {
	if len(fields) == 0 {
		return
	}
	c.writePoint(ReadingPoint(address, kind, rssi, fields, ts))
}

// WriteLoRaFrame records a LoRa frame and whether it was accepted.
func (c *Client) WriteLoRaFrame(direction, reason string, size int, ts time.Time) {
	c.writePoint(LoRaFramePoint(direction, reason, size, ts))
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.writePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

func (c *Client) writePoint(point *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.points.Add(1)
	c.writeAPI.WritePoint(point)
}
