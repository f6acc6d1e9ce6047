// Package health publishes periodic bridge health status to MQTT.
//
// Every bridge in the gateway (lora, ble) owns a Reporter. The reporter
// publishes a retained JSON Message to graylogic/health/<bridge> on a fixed
// interval, a "starting" message during initialisation and a final
// "stopping" message on shutdown. The broker-side LWT for the gateway process
// is configured by the MQTT client; NewLWTMessage builds the per-bridge
// equivalent for callers that want one.
//
// Bridges feed the reporter through the Source interface so that connection
// state and counters stay owned by the bridge.
package health
