package ble

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	bleadv "github.com/nerrad567/gray-logic-radio/internal/ble"
	"github.com/nerrad567/gray-logic-radio/internal/wire"
)

// macLen is the number of address bytes leading a raw hex frame.
const macLen = 6

// ScanMessage is one advertisement as published by a scanner.
// Byte fields are hex strings.
type ScanMessage struct {
	Address          string            `json:"addr"`
	RSSI             int               `json:"rssi"`
	Timestamp        *time.Time        `json:"ts,omitempty"`
	LocalName        string            `json:"local_name,omitempty"`
	ServiceData      map[string]string `json:"service_data,omitempty"`
	ManufacturerData map[string]string `json:"manufacturer_data,omitempty"`
	AdvData          string            `json:"adv_data,omitempty"`
}

// ParseScanMessage decodes a JSON scan message into a ScanResult.
//
// Returns:
//   - *bleadv.ScanResult: With AdvData already parsed into its AD structures
//   - error: ErrInvalidScan for bad JSON, a missing address or bad hex
func ParseScanMessage(payload []byte) (*bleadv.ScanResult, error) {
	var msg ScanMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScan, err)
	}
	return msg.ScanResult()
}

// ScanResult converts the message.
func (m ScanMessage) ScanResult() (*bleadv.ScanResult, error) {
	if strings.TrimSpace(m.Address) == "" {
		return nil, fmt.Errorf("%w: missing addr", ErrInvalidScan)
	}

	res := &bleadv.ScanResult{
		Address:   bleadv.NormalizeAddress(m.Address),
		RSSI:      m.RSSI,
		LocalName: m.LocalName,
	}
	if m.Timestamp != nil {
		res.Time = *m.Timestamp
	}

	var err error
	if res.ServiceData, err = decodeHexMap("service_data", m.ServiceData); err != nil {
		return nil, err
	}
	if res.ManufacturerData, err = decodeHexMap("manufacturer_data", m.ManufacturerData); err != nil {
		return nil, err
	}

	if m.AdvData != "" {
		adv, err := wire.FromHex(m.AdvData)
		if err != nil {
			return nil, fmt.Errorf("%w: adv_data: %v", ErrInvalidScan, err)
		}
		res.AdvData = adv
		if err := res.ParseAdvData(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidScan, err)
		}
	}

	return res, nil
}

// ParseHexFrame decodes a bare hex frame: six address bytes, then the raw
// advertising data.
func ParseHexFrame(frame string) (*bleadv.ScanResult, error) {
	b, err := wire.FromHex(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScan, err)
	}
	if len(b) <= macLen {
		return nil, fmt.Errorf("%w: hex frame of %d bytes has no advertising data", ErrInvalidScan, len(b))
	}

	res := &bleadv.ScanResult{
		Address: bleadv.NormalizeAddress(formatAddress(b[:macLen])),
		AdvData: b[macLen:],
	}
	if err := res.ParseAdvData(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScan, err)
	}
	return res, nil
}

// ParseWebSocketMessage accepts either a JSON scan message or a hex frame.
func ParseWebSocketMessage(msg []byte) (*bleadv.ScanResult, error) {
	trimmed := strings.TrimSpace(string(msg))
	if strings.HasPrefix(trimmed, "{") {
		return ParseScanMessage([]byte(trimmed))
	}
	return ParseHexFrame(trimmed)
}

func decodeHexMap(field string, in map[string]string) (map[string][]byte, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string][]byte, len(in))
	for k, v := range in {
		b, err := wire.FromHex(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s[%s]: %v", ErrInvalidScan, field, k, err)
		}
		out[strings.ToLower(k)] = b
	}
	return out, nil
}

func formatAddress(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = wire.ToHex([]byte{v})
	}
	return strings.Join(parts, ":")
}
