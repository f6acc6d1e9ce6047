// Package influxdb provides InfluxDB connectivity for the radio gateway.
//
// It wraps the official influxdb-client-go v2 library and writes two
// measurements:
//
//   - ble_reading: one point per decoded advertisement, tagged by device
//     address and decoder kind
//   - lora_frame: one point per LoRa frame, tagged by direction and, for
//     rejected frames, the rejection reason
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteReading(addr, "bthome", rssi, rec.Fields(), time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes; write errors
// are delivered to the callback registered with SetOnError.
package influxdb
