// Package ble decodes BLE advertisement payloads from the sensors and
// buttons the radio gateway listens to.
//
// Every decoder is a pure function over a byte slice. It returns a typed
// Record or an error matching ErrUnsupportedFormat; it never panics and never
// keeps state between calls.
//
// # Supported formats
//
//   - PTM215B energy-harvesting switch (EnOcean manufacturer data, 0x03DA)
//   - b-parasite soil sensor (service data 0x181A, local name "prst")
//   - Mopeka ultrasonic tank sensor (manufacturer data, 0x0059)
//   - BTHome v2 (service data 0xFCD2), as sent by Shelly BLU devices
//   - Ruuvi RAWv2 (manufacturer data, 0x0499)
//
// # Dispatch
//
// A Dispatcher picks exactly one decoder per scan result from a fixed route
// table keyed on manufacturer id, service UUID and local name:
//
//	d := ble.NewDispatcher()
//	rec, err := d.Decode(scan)
//	switch r := rec.(type) {
//	case *ble.BTHomeRecord:
//	    temp, ok := r.Value("temperature")
//	case *ble.MopekaReading:
//	    if !r.Valid {
//	        return // low quality echo
//	    }
//	}
//
// # Duplicate suppression
//
// Devices repeat every advertisement several times. Suppression is the
// caller's job: keep a SequenceTracker and feed it Record.Sequence().
package ble
