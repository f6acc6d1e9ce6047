// Package ble bridges BLE advertisements from external scanners to Gray Logic.
//
// Scanners deliver raw advertisements over MQTT (Shelly forwarding scripts,
// ESPHome proxies), a WebSocket stream or a local scanner process. The bridge:
//
//   - filters by the configured address allow-list
//   - decodes with the advertisement Dispatcher (PTM215B, b-parasite,
//     Mopeka, BTHome, Ruuvi)
//   - drops repeats of the same packet counter (memory or Redis backed)
//   - publishes the reading retained on graylogic/state/ble/{address}
//   - stores it in SQLite and InfluxDB when those are configured
//   - fires configured MQTT actions for PTM215B button presses
//
// # Scan message format
//
// MQTT scanners publish JSON on the scan topic; byte fields are hex:
//
//	{"addr":"bc:02:6e:c3:ce:cc","rssi":-61,
//	 "service_data":{"fcd2":"4002c409"},
//	 "manufacturer_data":{"03da":"0a0000000b"},
//	 "adv_data":"020106..."}
//
// The WebSocket source accepts the same JSON, or a bare hex string whose
// first six bytes are the MAC address followed by the raw advertising data.
// The command source runs a local scanner process and reads the same
// formats, one per stdout line.
package ble
