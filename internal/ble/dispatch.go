package ble

import (
	"fmt"
	"strings"
	"sync"
)

// DecodeFunc decodes one payload into a Record.
type DecodeFunc func(payload []byte) (Record, error)

// Route selects a decoder for a scan result. Exactly one of Manufacturer or
// Service must be set; it names the payload handed to Decode. LocalName, if
// set, must also match exactly.
type Route struct {
	Name         string
	Manufacturer string
	Service      string
	LocalName    string
	Decode       DecodeFunc
}

// payload returns the bytes this route decodes and whether it matches s.
func (r Route) payload(s *ScanResult) ([]byte, bool) {
	if r.LocalName != "" && s.LocalName != r.LocalName {
		return nil, false
	}
	if r.Manufacturer != "" {
		b, ok := s.ManufacturerData[r.Manufacturer]
		return b, ok
	}
	b, ok := s.ServiceData[r.Service]
	return b, ok
}

// Dispatcher routes scan results to decoders. Routes are tried in the order
// they were registered and the first match decides; a decode failure is
// returned as-is without trying later routes.
//
// Thread Safety: safe for concurrent use.
type Dispatcher struct {
	mu     sync.RWMutex
	routes []Route
}

// NewDispatcher returns a dispatcher with the built-in formats registered.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{}
	for _, r := range DefaultRoutes() {
		// Built-in routes are well formed.
		_ = d.Register(r)
	}
	return d
}

// DefaultRoutes returns the route table for the built-in formats.
func DefaultRoutes() []Route {
	return []Route{
		{Name: string(KindPTM215B), Manufacturer: ManufacturerEnOcean, Decode: wrap(DecodePTM215B)},
		{Name: string(KindBParasite), Service: ServiceEnvironmentalSensing, LocalName: BParasiteLocalName, Decode: wrap(DecodeBParasite)},
		{Name: string(KindMopeka), Manufacturer: ManufacturerMopeka, Decode: wrap(DecodeMopeka)},
		{Name: string(KindBTHome), Service: ServiceBTHome, Decode: wrap(DecodeBTHome)},
		{Name: string(KindRuuvi), Manufacturer: ManufacturerRuuvi, Decode: wrap(DecodeRuuvi)},
	}
}

// wrap adapts a typed decoder to DecodeFunc without leaking typed nils.
func wrap[T Record](fn func([]byte) (T, error)) DecodeFunc {
	return func(b []byte) (Record, error) {
		rec, err := fn(b)
		if err != nil {
			return nil, err
		}
		return rec, nil
	}
}

// Register appends a route.
//
// Returns:
//   - error: ErrInvalidRoute if the route has no key, two keys or no decoder
func (d *Dispatcher) Register(r Route) error {
	if (r.Manufacturer == "") == (r.Service == "") {
		return fmt.Errorf("%w: %q needs exactly one of manufacturer or service", ErrInvalidRoute, r.Name)
	}
	if r.Decode == nil {
		return fmt.Errorf("%w: %q has no decoder", ErrInvalidRoute, r.Name)
	}
	r.Manufacturer = strings.ToLower(r.Manufacturer)
	r.Service = strings.ToLower(r.Service)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes = append(d.routes, r)
	return nil
}

// Routes returns a copy of the route table.
func (d *Dispatcher) Routes() []Route {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Route(nil), d.routes...)
}

// Decode picks the first matching route for s and decodes its payload.
//
// Returns:
//   - Record: The decoded record
//   - string: Name of the route that matched, "" if none did
//   - error: ErrNoDecoder, or the decoder's ErrUnsupportedFormat family error
func (d *Dispatcher) Decode(s *ScanResult) (Record, string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, r := range d.routes {
		payload, ok := r.payload(s)
		if !ok {
			continue
		}
		rec, err := r.Decode(payload)
		if err != nil {
			return nil, r.Name, fmt.Errorf("%s: %w", r.Name, err)
		}
		return rec, r.Name, nil
	}
	return nil, "", ErrNoDecoder
}
