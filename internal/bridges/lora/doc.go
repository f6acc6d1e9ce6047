// Package lora bridges an encrypted LoRa text link to Gray Logic MQTT.
//
// Frames on the link are produced by framing.Codec: a checksummed,
// space-padded, AES-ECB encrypted text message carried as base64. The bridge
// plays both roles of the link:
//
//   - Sender: Send and SendCover encode a message and hand the base64 text to
//     the Transport.
//   - Receiver: every frame the Transport delivers is decoded. Rejected frames
//     are dropped, logged at debug level and counted per reason. Accepted
//     messages are published as events and, when they are cover commands,
//     turned into Shelly Cover.GoToPosition RPC requests.
//
// # Transports
//
// Two transports exist:
//
//	┌────────────┐  MQTT RPC   ┌──────────────────────┐   LoRa
//	│   Bridge   │◄───────────►│ Shelly + LoRa add-on │◄────────►
//	│ (this pkg) │             └──────────────────────┘
//	│            │    UART     ┌──────────────────────┐   LoRa
//	│            │◄───────────►│  RYLR896 (AT cmds)   │◄────────►
//	└────────────┘             └──────────────────────┘
//
// MQTTTransport sends Lora.SendBytes requests to <device>/rpc and reads
// NotifyEvent messages from <device>/events/rpc. SerialTransport drives an
// RYLR896 module with AT+SEND and parses +RCV lines.
//
// # Cover commands
//
// The cover protocol is a plain text message "c<id>:<pos>", for example
// "c0:100" (open cover 0) or "c0:0" (close it).
package lora
