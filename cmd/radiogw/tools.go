package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	bleadv "github.com/nerrad567/gray-logic-radio/internal/ble"
	"github.com/nerrad567/gray-logic-radio/internal/framing"
	"github.com/nerrad567/gray-logic-radio/internal/wire"
)

// keyEnv supplies --key when the flag is not given.
const keyEnv = "RADIOGW_LORA_KEY"

// Globals are bound into every command.
type Globals struct {
	Out io.Writer
}

// ErrRejected is returned when decode rejects a frame; kong exits 1.
var ErrRejected = errors.New("frame rejected")

// EncodeCmd encrypts a message.
type EncodeCmd struct {
	Key     string `help:"AES key as 32, 48 or 64 hex characters." env:"RADIOGW_LORA_KEY" required:""`
	Message string `arg:"" help:"Message to encrypt."`
}

// Run prints the base64 frame.
func (c *EncodeCmd) Run(g *Globals) error {
	codec, err := codecFromHex(c.Key)
	if err != nil {
		return err
	}
	ct, err := codec.Encode(c.Message)
	if err != nil {
		return err
	}
	fmt.Fprintln(g.Out, framing.EncodeBase64(ct))
	return nil
}

// DecodeCmd decrypts and verifies a frame.
type DecodeCmd struct {
	Key   string `help:"AES key as 32, 48 or 64 hex characters." env:"RADIOGW_LORA_KEY" required:""`
	Frame string `arg:"" help:"Base64 frame, or hex with --hex."`
	Hex   bool   `help:"Frame is hex instead of base64."`
}

// Run prints the message, or the rejection reason and ErrRejected.
func (c *DecodeCmd) Run(g *Globals) error {
	codec, err := codecFromHex(c.Key)
	if err != nil {
		return err
	}

	var ct []byte
	if c.Hex {
		ct, err = wire.FromHex(c.Frame)
	} else {
		ct, err = framing.DecodeBase64(c.Frame)
	}
	if err != nil {
		fmt.Fprintln(g.Out, "rejected:", framing.ReasonInvalidEncoding)
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}

	msg, err := codec.Decode(ct)
	if err != nil {
		fmt.Fprintln(g.Out, "rejected:", framing.Reason(err))
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	fmt.Fprintln(g.Out, msg)
	return nil
}

// ParseAdvCmd decodes one advertisement payload.
type ParseAdvCmd struct {
	Service      string `help:"16-bit service UUID of the payload, e.g. fcd2." xor:"source"`
	Manufacturer string `help:"Company id of the payload, e.g. 0059." xor:"source"`
	Adv          bool   `help:"Payload is the raw advertising data." xor:"source"`
	Name         string `help:"Local name, for formats that need it (prst for b-parasite)."`
	Payload      string `arg:"" help:"Payload as hex."`
}

// advOutput is printed by parse-adv.
type advOutput struct {
	Route  string         `json:"route"`
	Kind   string         `json:"kind"`
	Fields map[string]any `json:"fields"`
}

// Run prints the decoded record as JSON.
func (c *ParseAdvCmd) Run(g *Globals) error {
	payload, err := wire.FromHex(c.Payload)
	if err != nil {
		return err
	}

	res := &bleadv.ScanResult{LocalName: c.Name}
	switch {
	case c.Service != "":
		res.ServiceData = map[string][]byte{strings.ToLower(c.Service): payload}
	case c.Manufacturer != "":
		res.ManufacturerData = map[string][]byte{strings.ToLower(c.Manufacturer): payload}
	case c.Adv:
		res.AdvData = payload
		if err := res.ParseAdvData(); err != nil {
			return err
		}
	default:
		return errors.New("one of --service, --manufacturer or --adv is required")
	}

	rec, route, err := bleadv.NewDispatcher().Decode(res)
	if err != nil {
		return fmt.Errorf("%s: %w", bleadv.Reason(err), err)
	}

	enc := json.NewEncoder(g.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(advOutput{Route: route, Kind: string(rec.Kind()), Fields: rec.Fields()})
}

func codecFromHex(keyHex string) (*framing.Codec, error) {
	if keyHex == "" {
		keyHex = os.Getenv(keyEnv)
	}
	key, err := framing.ParseKey(keyHex)
	if err != nil {
		return nil, err
	}
	return framing.NewCodec(key)
}
