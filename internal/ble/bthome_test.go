package ble

import (
	"errors"
	"testing"
)

func TestDecodeBTHome(t *testing.T) {
	data := []byte{
		0x40,       // version 2, unencrypted
		0x00, 0x21, // pid 33
		0x01, 0x64, // battery 100
		0x02, 0xCA, 0x08, // temperature 22.50
		0x03, 0xBF, 0x13, // humidity 50.55
		0x05, 0x10, 0x27, 0x00, // illuminance 100.00
		0x45, 0xF6, 0xFF, // temperature -1.0
		0x3a, 0x01, // button 1
		0x3a, 0x02, // button 2
	}

	rec, err := DecodeBTHome(data)
	if err != nil {
		t.Fatalf("DecodeBTHome() error = %v", err)
	}
	if rec.Version != 2 {
		t.Errorf("Version = %d, want 2", rec.Version)
	}

	tests := []struct {
		name string
		want float64
	}{
		{name: "pid", want: 33},
		{name: "battery", want: 100},
		{name: "temperature", want: 22.5},
		{name: "humidity", want: 50.55},
		{name: "illuminance", want: 100},
		{name: "button", want: 1},
	}
	for _, tt := range tests {
		got, ok := rec.Value(tt.name)
		if !ok || !approx(got, tt.want) {
			t.Errorf("Value(%q) = %v, %v, want %v", tt.name, got, ok, tt.want)
		}
	}

	if temps := rec.Values("temperature"); len(temps) != 2 || !approx(temps[1], -1.0) {
		t.Errorf("Values(temperature) = %v, want [22.5 -1]", temps)
	}
	if buttons := rec.Values("button"); len(buttons) != 2 || buttons[1] != 2 {
		t.Errorf("Values(button) = %v, want [1 2]", buttons)
	}

	fields := rec.Fields()
	if _, ok := fields["button_2"]; !ok {
		t.Errorf("Fields() = %v, want button_2 for the repeated id", fields)
	}
	if seq, ok := rec.Sequence(); !ok || seq != 33 {
		t.Errorf("Sequence() = %d, %v, want 33", seq, ok)
	}
}

func TestDecodeBTHomeHeaderOnly(t *testing.T) {
	rec, err := DecodeBTHome([]byte{0x44})
	if err != nil {
		t.Fatalf("DecodeBTHome() error = %v", err)
	}
	if !rec.TriggerBased {
		t.Error("TriggerBased = false, want true")
	}
	if len(rec.Measurements) != 0 {
		t.Errorf("Measurements = %v, want none", rec.Measurements)
	}
	if _, ok := rec.Sequence(); ok {
		t.Error("Sequence() ok without a pid field")
	}
}

func TestDecodeBTHomeRejects(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "empty", data: nil, wantErr: ErrTruncatedBuffer},
		{name: "unknown field", data: []byte{0x40, 0x01, 0x64, 0x99, 0x01, 0x3a, 0x01}, wantErr: ErrUnknownField},
		{name: "unknown field first", data: []byte{0x40, 0xF0, 0x00}, wantErr: ErrUnknownField},
		{name: "truncated int16", data: []byte{0x40, 0x02, 0xCA}, wantErr: ErrTruncatedBuffer},
		{name: "truncated uint24", data: []byte{0x40, 0x05, 0x10, 0x27}, wantErr: ErrTruncatedBuffer},
		{name: "id without value", data: []byte{0x40, 0x01}, wantErr: ErrTruncatedBuffer},
		{name: "encrypted", data: []byte{0x41, 0x01, 0x64}, wantErr: ErrEncrypted},
		{name: "version 1", data: []byte{0x20, 0x01, 0x64}, wantErr: ErrUnsupportedFormat},
		{name: "version 3", data: []byte{0x60, 0x01, 0x64}, wantErr: ErrUnsupportedFormat},
		{name: "version 0", data: []byte{0x00, 0x01, 0x64}, wantErr: ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := DecodeBTHome(tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if rec != nil {
				t.Errorf("record = %+v, want nil", rec)
			}
		})
	}
}

func TestDecodeBTHomeVersionGate(t *testing.T) {
	// Every header whose top three bits are not 0b010 is rejected.
	for b := 0; b < 256; b++ {
		if b>>5 == BTHomeVersion {
			continue
		}
		rec, err := DecodeBTHome([]byte{byte(b), 0x01, 0x64})
		if rec != nil || !errors.Is(err, ErrUnsupportedFormat) {
			t.Fatalf("header 0x%02x: got %v, %v", b, rec, err)
		}
	}
}

func TestWireType(t *testing.T) {
	tests := []struct {
		typ  WireType
		size int
		name string
	}{
		{Uint8, 1, "uint8"},
		{Int8, 1, "int8"},
		{Uint16, 2, "uint16"},
		{Int16, 2, "int16"},
		{Uint24, 3, "uint24"},
		{Int24, 3, "int24"},
		{WireType(42), 0, "unknown(42)"},
	}
	for _, tt := range tests {
		if tt.typ.Size() != tt.size || tt.typ.String() != tt.name {
			t.Errorf("%d: Size() = %d String() = %q, want %d %q", tt.typ, tt.typ.Size(), tt.typ.String(), tt.size, tt.name)
		}
	}
}

func TestLookupSensor(t *testing.T) {
	d, ok := LookupSensor(0x02)
	if !ok || d.Name != "temperature" || d.Type != Int16 || d.Factor != 0.01 {
		t.Errorf("LookupSensor(0x02) = %+v, %v", d, ok)
	}
	if _, ok := LookupSensor(0x99); ok {
		t.Error("LookupSensor(0x99) ok, want missing")
	}
}
