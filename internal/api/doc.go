// Package api implements the HTTP API and live event stream of the radio
// gateway.
//
// This package provides:
//   - Health of the gateway and each radio bridge
//   - LoRa transmit and cover control endpoints
//   - Queries over stored BLE readings
//   - A WebSocket hub relaying readings and LoRa messages as they arrive
//   - Middleware stack (request ID, logging, recovery, body size limit)
//
// # Architecture
//
// The API sits beside the bridges, not in front of them. Commands go
// straight to the LoRa bridge; live events reach the hub through the same
// MQTT topics the bridges publish on, so the stream shows exactly what the
// rest of the installation sees.
//
// # Graceful Degradation
//
// Every dependency is optional. A missing LoRa bridge turns the LoRa
// endpoints into 503 responses, a missing reading store does the same for
// the reading endpoints, and without MQTT the event stream stays silent.
package api
