package ble

import (
	"fmt"

	"github.com/nerrad567/gray-logic-radio/internal/wire"
)

// PTM215B layout constants.
const (
	// ManufacturerEnOcean is the manufacturer data key of EnOcean (0x03DA).
	ManufacturerEnOcean = "03da"

	// enOceanCompanyID is the company id as it appears little-endian on air.
	enOceanCompanyID = 0x03DA

	// ptm215bPayloadLen is the sequence counter plus the action byte.
	ptm215bPayloadLen = 5

	// ptm215bAdvHeaderLen is length, AD type and company id in raw advData.
	ptm215bAdvHeaderLen = 4

	adTypeManufacturer = 0xFF
)

// Button numbers and action codes. The low bit of an action code is set on
// press and clear on release.
var buttonActions = map[uint8]struct {
	button  int
	pressed bool
}{
	3:  {button: 1, pressed: true},
	2:  {button: 1, pressed: false},
	5:  {button: 2, pressed: true},
	4:  {button: 2, pressed: false},
	9:  {button: 3, pressed: true},
	8:  {button: 3, pressed: false},
	17: {button: 4, pressed: true},
	16: {button: 4, pressed: false},
}

// ButtonEvent is a PTM215B switch telegram.
type ButtonEvent struct {
	// SequenceCounter increases with every telegram.
	SequenceCounter uint32 `json:"sequence"`

	// Action is the raw status byte.
	Action uint8 `json:"action"`

	// Button is 1-4, or 0 when Action is not a single-button code.
	Button int `json:"button"`

	// Pressed is true for a press edge, false for a release edge.
	Pressed bool `json:"pressed"`
}

// ButtonFromAction maps a PTM215B action byte to a button number.
//
// Returns:
//   - button: 1-4
//   - pressed: True for a press edge
//   - ok: False for codes that name no single button (e.g. 99)
func ButtonFromAction(action uint8) (button int, pressed bool, ok bool) {
	a, ok := buttonActions[action]
	if !ok {
		return 0, false, false
	}
	return a.button, a.pressed, true
}

// DecodePTM215B decodes the manufacturer data payload that follows the
// EnOcean company id: a little-endian 32-bit sequence counter then the
// action byte. Trailing bytes (the telegram signature) are ignored.
func DecodePTM215B(data []byte) (*ButtonEvent, error) {
	if len(data) < ptm215bPayloadLen {
		return nil, truncated("ptm215b", ptm215bPayloadLen, len(data))
	}

	seq, err := wire.Uint32LE(data, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedBuffer, err)
	}

	ev := &ButtonEvent{SequenceCounter: seq, Action: data[4]}
	ev.Button, ev.Pressed, _ = ButtonFromAction(ev.Action)
	return ev, nil
}

// DecodePTM215BAdvData decodes a complete PTM215B advertisement as received
// from a passive scan, where the action byte sits at offset 8 and the
// sequence counter at offsets 4-7.
func DecodePTM215BAdvData(adv []byte) (*ButtonEvent, error) {
	if len(adv) < ptm215bAdvHeaderLen+ptm215bPayloadLen {
		return nil, truncated("ptm215b adv", ptm215bAdvHeaderLen+ptm215bPayloadLen, len(adv))
	}
	if adv[1] != adTypeManufacturer {
		return nil, fmt.Errorf("%w: ptm215b expects manufacturer data, got AD type 0x%02x", ErrUnsupportedFormat, adv[1])
	}
	if id, _ := wire.Uint16LE(adv, 2); id != enOceanCompanyID {
		return nil, fmt.Errorf("%w: ptm215b company id 0x%04x", ErrUnsupportedFormat, id)
	}
	return DecodePTM215B(adv[ptm215bAdvHeaderLen:])
}

// Kind implements Record.
func (e *ButtonEvent) Kind() Kind { return KindPTM215B }

// Fields implements Record.
func (e *ButtonEvent) Fields() map[string]any {
	return map[string]any{
		"sequence": int64(e.SequenceCounter),
		"action":   int64(e.Action),
		"button":   int64(e.Button),
		"pressed":  e.Pressed,
	}
}

// Sequence implements Record.
func (e *ButtonEvent) Sequence() (uint32, bool) { return e.SequenceCounter, true }

func (*ButtonEvent) isRecord() {}
