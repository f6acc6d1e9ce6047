// Package mqtt provides MQTT client connectivity for the radio gateway.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support, restored on reconnect
//   - Last Will and Testament (LWT) for offline detection
//   - Topic builders for gateway and Shelly RPC topics
//
// # Architecture
//
// The broker is the meeting point for every radio-facing component:
//
//	BLE scanners ──scan results──►┌─────────┐◄──RPC / events──► Shelly LoRa add-on
//	                              │ broker  │
//	radiogw ◄────────────────────►└─────────┘──state/health──► consumers
//
// # Security Considerations
//
//   - TLS should be enabled for anything beyond a local broker (cfg.Broker.TLS=true)
//   - LoRa payloads travel base64-encoded and stay encrypted end to end
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllScanResults(), 1,
//	    func(topic string, payload []byte) error {
//	        return handleScan(payload)
//	    })
//
//	client.PublishRetained(mqtt.Topics{}.BridgeState("ble", "bc:02:6e:c3:ce:cc"), state)
package mqtt
