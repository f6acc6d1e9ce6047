// Package process supervises a long-running child process whose stdout is a
// line-oriented data stream.
//
// The radio gateway uses it to run external BLE scanners (a BlueZ or
// ESPHome forwarder script, for example) that print one scan result per
// line. The manager hands every stdout line to a callback, restarts the
// scanner with exponential backoff when it exits, and kills it when it goes
// silent for longer than the stall timeout.
//
// Features:
//   - Start/stop with graceful shutdown of the whole process group
//   - Automatic restart with backoff that resets after a stable run
//   - Stall watchdog driven by output activity
//   - Line delivery from stdout, stderr captured to the logger
//
// Example usage:
//
//	mgr := process.NewManager(process.Config{
//	    Name:       "ble-scanner",
//	    Binary:     "/usr/local/bin/ble-forwarder",
//	    Args:       []string{"--json"},
//	    StallAfter: 2 * time.Minute,
//	    OnLine:     func(line []byte) { handle(line) },
//	})
//
//	if err := mgr.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Stop()
package process
