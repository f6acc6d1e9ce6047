// Package redis provides the optional shared duplicate-suppression store.
//
// When several gateways listen to the same BLE devices, each of them sees
// every advertisement. Storing the last packet counter per device in Redis
// lets all of them agree on which advertisements are new. A single gateway
// does not need Redis; the in-process ble.SequenceTracker is enough.
//
// Usage:
//
//	client, err := redis.Connect(ctx, cfg.Redis)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	fresh, err := client.ObserveSequence(ctx, "bc:02:6e:c3:ce:cc/bparasite", 7, 10*time.Minute)
//
// Thread Safety: all methods are safe for concurrent use.
package redis
