package ble

import (
	"fmt"

	"github.com/nerrad567/gray-logic-radio/internal/wire"
)

// Ruuvi RAWv2 layout constants. Offsets are relative to the manufacturer
// data that follows the company id.
const (
	// ManufacturerRuuvi is the manufacturer data key of Ruuvi (0x0499).
	ManufacturerRuuvi = "0499"

	// RuuviFormatRAWv2 is the only supported data format.
	RuuviFormatRAWv2 = 5

	ruuviLen               = 24
	ruuviPressureOffset    = 50000
	ruuviTemperatureFactor = 0.005
	ruuviHumidityFactor    = 0.0025
	ruuviBatteryBaseMV     = 1600
	ruuviTxPowerBase       = -40
	ruuviTxPowerStep       = 2
	ruuviTxPowerMask       = 0x1f
	ruuviBatteryShift      = 5
	ruuviMACOffset         = 18
	ruuviMACLen            = 6
)

// RuuviReading is a RuuviTag RAWv2 measurement.
type RuuviReading struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`

	// Pressure in Pa.
	Pressure uint32 `json:"pressure"`

	// Acceleration in mG.
	AccelX int16 `json:"accel_x"`
	AccelY int16 `json:"accel_y"`
	AccelZ int16 `json:"accel_z"`

	BatteryMV       uint16 `json:"battery_mv"`
	TxPower         int    `json:"tx_power"`
	MovementCounter uint8  `json:"movement_counter"`
	SequenceNumber  uint16 `json:"sequence"`
	MAC             string `json:"mac"`
}

// DecodeRuuvi decodes RuuviTag manufacturer data (without the company id).
func DecodeRuuvi(data []byte) (*RuuviReading, error) {
	if len(data) < 1 {
		return nil, truncated("ruuvi", ruuviLen, len(data))
	}
	if data[0] != RuuviFormatRAWv2 {
		return nil, fmt.Errorf("%w: ruuvi data format %d", ErrUnsupportedFormat, data[0])
	}
	if len(data) < ruuviLen {
		return nil, truncated("ruuvi", ruuviLen, len(data))
	}

	temp, _ := wire.Int16BE(data, 1)
	hum, _ := wire.Uint16BE(data, 3)
	pres, _ := wire.Uint16BE(data, 5)
	ax, _ := wire.Int16BE(data, 7)
	ay, _ := wire.Int16BE(data, 9)
	az, _ := wire.Int16BE(data, 11)
	power, _ := wire.Uint16BE(data, 13)
	seq, _ := wire.Uint16BE(data, 16)

	return &RuuviReading{
		Temperature:     float64(temp) * ruuviTemperatureFactor,
		Humidity:        float64(hum) * ruuviHumidityFactor,
		Pressure:        uint32(pres) + ruuviPressureOffset,
		AccelX:          ax,
		AccelY:          ay,
		AccelZ:          az,
		BatteryMV:       power>>ruuviBatteryShift + ruuviBatteryBaseMV,
		TxPower:         ruuviTxPowerBase + int(power&ruuviTxPowerMask)*ruuviTxPowerStep,
		MovementCounter: data[15],
		SequenceNumber:  seq,
		MAC:             formatMAC(data[ruuviMACOffset : ruuviMACOffset+ruuviMACLen]),
	}, nil
}

// Kind implements Record.
func (r *RuuviReading) Kind() Kind { return KindRuuvi }

// Fields implements Record.
func (r *RuuviReading) Fields() map[string]any {
	return map[string]any{
		"temperature":      r.Temperature,
		"humidity":         r.Humidity,
		"pressure":         int64(r.Pressure),
		"accel_x":          int64(r.AccelX),
		"accel_y":          int64(r.AccelY),
		"accel_z":          int64(r.AccelZ),
		"battery_mv":       int64(r.BatteryMV),
		"tx_power":         int64(r.TxPower),
		"movement_counter": int64(r.MovementCounter),
		"sequence":         int64(r.SequenceNumber),
	}
}

// Sequence implements Record.
func (r *RuuviReading) Sequence() (uint32, bool) { return uint32(r.SequenceNumber), true }

func (*RuuviReading) isRecord() {}
