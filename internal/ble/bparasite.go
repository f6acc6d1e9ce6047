package ble

import (
	"fmt"

	"github.com/nerrad567/gray-logic-radio/internal/wire"
)

// b-parasite layout constants.
const (
	// ServiceEnvironmentalSensing is the service data key b-parasite uses (0x181A).
	ServiceEnvironmentalSensing = "181a"

	// BParasiteLocalName is the advertised local name of b-parasite sensors.
	BParasiteLocalName = "prst"

	bparasiteProtocol       = 2
	bparasiteFlagLux        = 0x01
	bparasiteFlagEncrypted  = 0x08
	bparasiteMinLen         = 10
	bparasiteMACOffset      = 10
	bparasiteMACLen         = 6
	bparasiteLuxOffset      = 16
	bparasiteLuxLen         = bparasiteLuxOffset + 2
	bparasiteCounterMask    = 0x0f
	bparasiteFractionDenom  = 0x10000
	bparasiteMillivoltScale = 1000
	bparasiteCentiScale     = 100
)

// BParasiteReading is a b-parasite soil moisture sensor reading.
type BParasiteReading struct {
	// Counter is a 4-bit wrapping packet counter.
	Counter uint8 `json:"counter"`

	// Battery voltage in volts.
	Battery float64 `json:"battery"`

	// Temperature in °C.
	Temperature float64 `json:"temperature"`

	// Humidity is relative air humidity in percent.
	Humidity float64 `json:"humidity"`

	// Moisture is relative soil moisture in percent.
	Moisture float64 `json:"moisture"`

	// MAC is the device address carried in the payload, when present.
	MAC string `json:"mac,omitempty"`

	// HasLux reports whether Lux was present.
	HasLux bool    `json:"-"`
	Lux    float64 `json:"lux,omitempty"`
}

// DecodeBParasite decodes b-parasite protocol v2 service data.
//
// Byte 0 holds the protocol version in its high nibble, the encryption flag
// in bit 3 and the lux flag in bit 0. Values are big-endian 16-bit fields.
//
// Returns:
//   - *BParasiteReading: Decoded reading
//   - error: ErrUnsupportedFormat for other versions, ErrEncrypted, ErrTruncatedBuffer
func DecodeBParasite(data []byte) (*BParasiteReading, error) {
	if len(data) < bparasiteMinLen {
		return nil, truncated("bparasite", bparasiteMinLen, len(data))
	}

	flags := data[0]
	if proto := flags >> 4; proto != bparasiteProtocol {
		return nil, fmt.Errorf("%w: bparasite protocol %d", ErrUnsupportedFormat, proto)
	}
	if flags&bparasiteFlagEncrypted != 0 {
		return nil, fmt.Errorf("%w: bparasite", ErrEncrypted)
	}
	hasLux := flags&bparasiteFlagLux != 0
	if hasLux && len(data) < bparasiteLuxLen {
		return nil, truncated("bparasite lux", bparasiteLuxLen, len(data))
	}

	// Lengths are checked above, so the reads below cannot fail.
	battery, _ := wire.Uint16BE(data, 2)
	temp, _ := wire.Int16BE(data, 4)
	hum, _ := wire.Uint16BE(data, 6)
	moist, _ := wire.Uint16BE(data, 8)

	r := &BParasiteReading{
		Counter:     data[1] & bparasiteCounterMask,
		Battery:     float64(battery) / bparasiteMillivoltScale,
		Temperature: float64(temp) / bparasiteCentiScale,
		Humidity:    bparasiteCentiScale * float64(hum) / bparasiteFractionDenom,
		Moisture:    bparasiteCentiScale * float64(moist) / bparasiteFractionDenom,
	}
	if mac, err := wire.Slice(data, bparasiteMACOffset, bparasiteMACLen); err == nil {
		r.MAC = formatMAC(mac)
	}
	if hasLux {
		lux, _ := wire.Uint16BE(data, bparasiteLuxOffset)
		r.HasLux = true
		r.Lux = float64(lux)
	}
	return r, nil
}

// Kind implements Record.
func (r *BParasiteReading) Kind() Kind { return KindBParasite }

// Fields implements Record.
func (r *BParasiteReading) Fields() map[string]any {
	f := map[string]any{
		"counter":     int64(r.Counter),
		"battery":     r.Battery,
		"temperature": r.Temperature,
		"humidity":    r.Humidity,
		"moisture":    r.Moisture,
	}
	if r.HasLux {
		f["lux"] = r.Lux
	}
	return f
}

// Sequence implements Record.
func (r *BParasiteReading) Sequence() (uint32, bool) { return uint32(r.Counter), true }

func (*BParasiteReading) isRecord() {}
