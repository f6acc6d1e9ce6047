package ble

import (
	"fmt"
	"strconv"

	"github.com/nerrad567/gray-logic-radio/internal/wire"
)

// BTHome layout constants.
const (
	// ServiceBTHome is the BTHome service data key (0xFCD2).
	ServiceBTHome = "fcd2"

	// BTHomeVersion is the only supported BTHome version.
	BTHomeVersion = 2

	bthomeFlagEncrypted    = 0x01
	bthomeFlagTriggerBased = 0x04
	bthomeVersionShift     = 5

	// bthomePacketID is the field id of the packet counter.
	bthomePacketID = 0x00
)

// WireType is the on-air encoding of a BTHome value. Multi-byte values are
// little-endian.
type WireType uint8

// Supported wire types.
const (
	Uint8 WireType = iota
	Int8
	Uint16
	Int16
	Uint24
	Int24
)

// Size returns the encoded width in bytes.
func (t WireType) Size() int {
	switch t {
	case Uint8, Int8:
		return 1
	case Uint16, Int16:
		return 2
	case Uint24, Int24:
		return 3
	default:
		return 0
	}
}

// String returns the type name.
func (t WireType) String() string {
	switch t {
	case Uint8:
		return "uint8"
	case Int8:
		return "int8"
	case Uint16:
		return "uint16"
	case Int16:
		return "int16"
	case Uint24:
		return "uint24"
	case Int24:
		return "int24"
	default:
		return "unknown(" + strconv.Itoa(int(t)) + ")"
	}
}

// read decodes a value of type t at the start of buf.
func (t WireType) read(buf []byte) (int64, error) {
	switch t {
	case Uint8:
		v, err := wire.Uint8(buf, 0)
		return int64(v), err
	case Int8:
		v, err := wire.Int8(buf, 0)
		return int64(v), err
	case Uint16:
		v, err := wire.Uint16LE(buf, 0)
		return int64(v), err
	case Int16:
		v, err := wire.Int16LE(buf, 0)
		return int64(v), err
	case Uint24:
		v, err := wire.Uint24LE(buf, 0)
		return int64(v), err
	case Int24:
		v, err := wire.Int24LE(buf, 0)
		return int64(v), err
	default:
		return 0, fmt.Errorf("%w: wire type %s", ErrUnsupportedFormat, t)
	}
}

// SensorDescriptor describes one BTHome field id.
type SensorDescriptor struct {
	ID   uint8
	Name string
	Type WireType

	// Factor scales the raw value. Zero means 1.
	Factor float64

	Unit string
}

// sensorDescriptors is the BTHome field table. Names repeat where BTHome
// defines the same quantity at several resolutions.
var sensorDescriptors = map[uint8]SensorDescriptor{
	0x00: {ID: 0x00, Name: "pid", Type: Uint8},
	0x01: {ID: 0x01, Name: "battery", Type: Uint8, Unit: "%"},
	0x02: {ID: 0x02, Name: "temperature", Type: Int16, Factor: 0.01, Unit: "°C"},
	0x03: {ID: 0x03, Name: "humidity", Type: Uint16, Factor: 0.01, Unit: "%"},
	0x05: {ID: 0x05, Name: "illuminance", Type: Uint24, Factor: 0.01, Unit: "lx"},
	0x1a: {ID: 0x1a, Name: "door", Type: Uint8},
	0x20: {ID: 0x20, Name: "moisture", Type: Uint8},
	0x21: {ID: 0x21, Name: "motion", Type: Uint8},
	0x2c: {ID: 0x2c, Name: "vibration", Type: Uint8},
	0x2d: {ID: 0x2d, Name: "window", Type: Uint8},
	0x2e: {ID: 0x2e, Name: "humidity", Type: Uint8, Unit: "%"},
	0x3a: {ID: 0x3a, Name: "button", Type: Uint8},
	0x3f: {ID: 0x3f, Name: "rotation", Type: Int16, Factor: 0.1, Unit: "°"},
	0x40: {ID: 0x40, Name: "distance_mm", Type: Uint16, Unit: "mm"},
	0x45: {ID: 0x45, Name: "temperature", Type: Int16, Factor: 0.1, Unit: "°C"},
}

// LookupSensor returns the descriptor for a BTHome field id.
func LookupSensor(id uint8) (SensorDescriptor, bool) {
	d, ok := sensorDescriptors[id]
	return d, ok
}

// BTHomeMeasurement is one decoded field of a BTHome stream.
type BTHomeMeasurement struct {
	ID    uint8   `json:"id"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// BTHomeRecord is a decoded BTHome v2 advertisement.
type BTHomeRecord struct {
	Version      uint8 `json:"version"`
	TriggerBased bool  `json:"trigger_based"`

	// Measurements in stream order. A field id may appear more than once,
	// e.g. one "button" entry per button on a multi-button remote.
	Measurements []BTHomeMeasurement `json:"measurements"`
}

// DecodeBTHome decodes unencrypted BTHome v2 service data.
//
// Decoding is all-or-nothing: an unknown field id or a value cut short by the
// end of the buffer rejects the whole payload.
//
// Returns:
//   - *BTHomeRecord: Decoded record
//   - error: ErrUnsupportedFormat (version), ErrEncrypted, ErrUnknownField or ErrTruncatedBuffer
func DecodeBTHome(data []byte) (*BTHomeRecord, error) {
	if len(data) < 1 {
		return nil, truncated("bthome", 1, len(data))
	}

	info := data[0]
	version := info >> bthomeVersionShift
	if version != BTHomeVersion {
		return nil, fmt.Errorf("%w: bthome version %d", ErrUnsupportedFormat, version)
	}
	if info&bthomeFlagEncrypted != 0 {
		return nil, fmt.Errorf("%w: bthome", ErrEncrypted)
	}

	rec := &BTHomeRecord{
		Version:      version,
		TriggerBased: info&bthomeFlagTriggerBased != 0,
	}

	for off := 1; off < len(data); {
		id := data[off]
		desc, ok := sensorDescriptors[id]
		if !ok {
			return nil, fmt.Errorf("%w: bthome id 0x%02x at offset %d", ErrUnknownField, id, off)
		}
		off++

		raw, err := desc.Type.read(data[off:])
		if err != nil {
			return nil, fmt.Errorf("%w: bthome %s at offset %d", ErrTruncatedBuffer, desc.Name, off)
		}
		off += desc.Type.Size()

		value := float64(raw)
		if desc.Factor != 0 {
			value *= desc.Factor
		}
		rec.Measurements = append(rec.Measurements, BTHomeMeasurement{ID: id, Name: desc.Name, Value: value})
	}

	return rec, nil
}

// Value returns the first measurement with the given name.
func (r *BTHomeRecord) Value(name string) (float64, bool) {
	for _, m := range r.Measurements {
		if m.Name == name {
			return m.Value, true
		}
	}
	return 0, false
}

// Values returns every measurement with the given name in stream order.
func (r *BTHomeRecord) Values(name string) []float64 {
	var out []float64
	for _, m := range r.Measurements {
		if m.Name == name {
			out = append(out, m.Value)
		}
	}
	return out
}

// Kind implements Record.
func (r *BTHomeRecord) Kind() Kind { return KindBTHome }

// Fields implements Record. Repeated names get a 1-based suffix from the
// second occurrence on: "button", "button_2", "button_3".
func (r *BTHomeRecord) Fields() map[string]any {
	f := make(map[string]any, len(r.Measurements))
	seen := make(map[string]int, len(r.Measurements))
	for _, m := range r.Measurements {
		seen[m.Name]++
		key := m.Name
		if n := seen[m.Name]; n > 1 {
			key = m.Name + "_" + strconv.Itoa(n)
		}
		f[key] = m.Value
	}
	return f
}

// Sequence implements Record using the packet id field.
func (r *BTHomeRecord) Sequence() (uint32, bool) {
	for _, m := range r.Measurements {
		if m.ID == bthomePacketID {
			return uint32(m.Value), true
		}
	}
	return 0, false
}

func (*BTHomeRecord) isRecord() {}
