package ble

import (
	"fmt"
	"math"

	"github.com/nerrad567/gray-logic-radio/internal/wire"
)

// Mopeka layout constants.
const (
	// ManufacturerMopeka is the manufacturer data key of Mopeka sensors (0x0059).
	ManufacturerMopeka = "0059"

	// Device types accepted by DecodeMopeka.
	MopekaTypeProCheck = 0x03
	MopekaTypePro      = 0x08

	mopekaMinLen          = 10
	mopekaTempOffset      = 40
	mopekaBatteryDivisor  = 32
	mopekaAccelDivisor    = 1024
	mopekaMinValidQuality = 2
	mopekaSevenBitMask    = 0x7f
	mopekaRawTimeHighMask = 0x3f
	mopekaQualityShift    = 6
)

// Tank level calibration polynomial, applied as
// level = raw * (c0 + c1*t + c2*t*t) where t is the raw temperature.
const (
	mopekaCoef0 = 0.573045
	mopekaCoef1 = -0.002822
	mopekaCoef2 = -0.00000535
)

// MopekaReading is a Mopeka ultrasonic tank sensor reading.
type MopekaReading struct {
	DeviceType     uint8   `json:"device_type"`
	BatteryVoltage float64 `json:"battery_voltage"`
	TemperatureC   int     `json:"temperature"`

	// Quality is the echo quality, 0-3.
	Quality uint8 `json:"quality"`

	// RawTime is the 14-bit echo time of flight.
	RawTime uint16 `json:"raw_time"`

	// TankLevelMM is the liquid depth derived from RawTime and temperature.
	TankLevelMM int `json:"tank_level_mm"`

	AccelX float64 `json:"accel_x"`
	AccelY float64 `json:"accel_y"`

	// ID is the 24-bit device identifier.
	ID uint32 `json:"id"`

	// Valid is Quality >= 2. Callers should drop invalid readings.
	Valid bool `json:"valid"`
}

// DecodeMopeka decodes Mopeka manufacturer data (without the company id).
//
// Returns:
//   - *MopekaReading: Decoded reading; check Valid before use
//   - error: ErrUnsupportedFormat for unknown device types, ErrTruncatedBuffer
func DecodeMopeka(data []byte) (*MopekaReading, error) {
	if len(data) < 1 {
		return nil, truncated("mopeka", mopekaMinLen, len(data))
	}
	if t := data[0]; t != MopekaTypeProCheck && t != MopekaTypePro {
		return nil, fmt.Errorf("%w: mopeka device type 0x%02x", ErrUnsupportedFormat, t)
	}
	if len(data) < mopekaMinLen {
		return nil, truncated("mopeka", mopekaMinLen, len(data))
	}

	rawTemp := int(data[2] & mopekaSevenBitMask)
	rawTime := uint16(data[4]&mopekaRawTimeHighMask)<<8 | uint16(data[3])
	quality := data[4] >> mopekaQualityShift

	return &MopekaReading{
		DeviceType:     data[0],
		BatteryVoltage: float64(data[1]&mopekaSevenBitMask) / mopekaBatteryDivisor,
		TemperatureC:   rawTemp - mopekaTempOffset,
		Quality:        quality,
		RawTime:        rawTime,
		TankLevelMM:    MopekaTankLevel(rawTime, rawTemp),
		AccelY:         float64(wire.SignedByte(data[8])) / mopekaAccelDivisor,
		AccelX:         float64(wire.SignedByte(data[9])) / mopekaAccelDivisor,
		ID:             uint32(data[5])<<16 | uint32(data[6])<<8 | uint32(data[7]),
		Valid:          quality >= mopekaMinValidQuality,
	}, nil
}

// MopekaTankLevel converts an echo time and raw temperature (°C + 40) to a
// liquid depth in millimetres. Halves round up.
func MopekaTankLevel(rawTime uint16, rawTemp int) int {
	t := float64(rawTemp)
	level := float64(rawTime) * (mopekaCoef0 + mopekaCoef1*t + mopekaCoef2*t*t)
	return int(math.Floor(level + 0.5))
}

// Kind implements Record.
func (r *MopekaReading) Kind() Kind { return KindMopeka }

// Fields implements Record.
func (r *MopekaReading) Fields() map[string]any {
	return map[string]any{
		"device_type":     int64(r.DeviceType),
		"battery_voltage": r.BatteryVoltage,
		"temperature":     int64(r.TemperatureC),
		"quality":         int64(r.Quality),
		"raw_time":        int64(r.RawTime),
		"tank_level_mm":   int64(r.TankLevelMM),
		"accel_x":         r.AccelX,
		"accel_y":         r.AccelY,
		"id":              int64(r.ID),
		"valid":           r.Valid,
	}
}

// Sequence implements Record. Mopeka sensors carry no packet counter.
func (r *MopekaReading) Sequence() (uint32, bool) { return 0, false }

func (*MopekaReading) isRecord() {}
