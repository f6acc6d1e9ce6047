package ble

import (
	"fmt"
	"strings"
	"time"
)

// GAP advertising data types.
const (
	adTypeShortName     = 0x08
	adTypeCompleteName  = 0x09
	adTypeServiceData16 = 0x16
)

// ScanResult is one advertisement as delivered by a scanner.
//
// Scanners that pre-parse the advertisement fill LocalName, ServiceData and
// ManufacturerData directly. Scanners that only forward the raw bytes set
// AdvData and call ParseAdvData.
type ScanResult struct {
	Address string    `json:"addr"`
	RSSI    int       `json:"rssi"`
	Time    time.Time `json:"ts"`

	LocalName string `json:"local_name,omitempty"`

	// ServiceData is keyed by the 16-bit service UUID as 4 lowercase hex digits.
	ServiceData map[string][]byte `json:"service_data,omitempty"`

	// ManufacturerData is keyed by the company id as 4 lowercase hex digits.
	// Values exclude the company id.
	ManufacturerData map[string][]byte `json:"manufacturer_data,omitempty"`

	AdvData []byte `json:"adv_data,omitempty"`
}

// ParseAdvData fills LocalName, ServiceData and ManufacturerData from
// AdvData. Fields already set are kept.
//
// Returns:
//   - error: ErrTruncatedBuffer if an AD structure runs past the end
func (s *ScanResult) ParseAdvData() error {
	for off := 0; off < len(s.AdvData); {
		n := int(s.AdvData[off])
		if n == 0 {
			// Zero length marks the start of padding.
			return nil
		}
		if off+1+n > len(s.AdvData) {
			return fmt.Errorf("%w: AD structure at offset %d needs %d bytes, have %d",
				ErrTruncatedBuffer, off, n, len(s.AdvData)-off-1)
		}

		typ := s.AdvData[off+1]
		body := s.AdvData[off+2 : off+1+n]
		off += 1 + n

		switch typ {
		case adTypeCompleteName:
			s.LocalName = string(body)
		case adTypeShortName:
			if s.LocalName == "" {
				s.LocalName = string(body)
			}
		case adTypeServiceData16:
			if len(body) < 2 {
				continue
			}
			if s.ServiceData == nil {
				s.ServiceData = make(map[string][]byte)
			}
			s.ServiceData[uuid16Key(body)] = body[2:]
		case adTypeManufacturer:
			if len(body) < 2 {
				continue
			}
			if s.ManufacturerData == nil {
				s.ManufacturerData = make(map[string][]byte)
			}
			s.ManufacturerData[uuid16Key(body)] = body[2:]
		}
	}
	return nil
}

// uuid16Key renders a little-endian 16-bit id as 4 lowercase hex digits.
func uuid16Key(b []byte) string {
	return fmt.Sprintf("%04x", uint16(b[0])|uint16(b[1])<<8)
}

// formatMAC renders b as colon-separated lowercase hex.
func formatMAC(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02x", v)
	}
	return strings.Join(parts, ":")
}

// NormalizeAddress lowercases a MAC address and converts '-' separators to ':'.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(addr), "-", ":"))
}
