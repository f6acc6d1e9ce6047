// Gray Logic Radio Gateway
//
// This is the main entry point of the radio gateway. It bridges two radio
// links onto the Gray Logic MQTT bus:
//   - An encrypted LoRa link (AES-ECB frames with an XOR checksum) carried by
//     a Shelly LoRa add-on or an RYLR896 UART module
//   - BLE advertisements (PTM215B, b-parasite, Mopeka, BTHome, Ruuvi)
//     reported by external scanners over MQTT or WebSocket
//
// The encode, decode and parse-adv commands expose the codecs for bench work
// without a broker. migrate manages the SQLite schema offline.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// CLI is the command line of radiogw.
type CLI struct {
	Version kong.VersionFlag `help:"Print version and exit."`

	Run      RunCmd      `cmd:"" default:"1" help:"Run the gateway."`
	Encode   EncodeCmd   `cmd:"" help:"Encrypt a message into a base64 LoRa frame."`
	Decode   DecodeCmd   `cmd:"" help:"Decrypt and verify a base64 LoRa frame."`
	ParseAdv ParseAdvCmd `cmd:"" name:"parse-adv" help:"Decode a BLE advertisement payload."`
	Migrate  MigrateCmd  `cmd:"" help:"Show, apply or roll back database migrations."`
}

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("radiogw"),
		kong.Description("Gray Logic radio gateway: encrypted LoRa and BLE advertisements over MQTT."),
		kong.UsageOnError(),
		kong.Vars{"version": version + " (" + commit + ", " + date + ")", "default_config": defaultConfigPath},
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.Bind(&Globals{Out: os.Stdout}),
	)
	kctx.FatalIfErrorf(kctx.Run())
}
