// Package panel serves the gateway's live monitor page as an embedded asset.
//
// The page subscribes to the API event stream (/api/v1/ws) and lists the
// latest BLE readings, button presses, LoRa messages and bridge health as
// they arrive. It is static HTML and JavaScript embedded with go:embed, so
// the binary has no runtime dependency on external files.
//
// Unknown paths fall back to index.html. Cache-control is no-cache so a new
// binary's page is picked up on reload.
package panel
