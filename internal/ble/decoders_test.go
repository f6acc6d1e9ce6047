package ble

import (
	"errors"
	"math"
	"testing"
)

const eps = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func TestDecodeBParasite(t *testing.T) {
	// Protocol 2, no lux, big-endian fields at offsets 2, 4, 6 and 8.
	data := []byte{0x20, 0x00, 0x64, 0x00, 0x0A, 0x00, 0x80, 0x00, 0x40, 0x00}

	r, err := DecodeBParasite(data)
	if err != nil {
		t.Fatalf("DecodeBParasite() error = %v", err)
	}
	if !approx(r.Battery, 25.6) {
		t.Errorf("Battery = %v, want 25.6", r.Battery)
	}
	if !approx(r.Temperature, 25.6) {
		t.Errorf("Temperature = %v, want 25.6", r.Temperature)
	}
	if !approx(r.Humidity, 50.0) {
		t.Errorf("Humidity = %v, want 50", r.Humidity)
	}
	if !approx(r.Moisture, 25.0) {
		t.Errorf("Moisture = %v, want 25", r.Moisture)
	}
	if r.HasLux {
		t.Error("HasLux = true, want false")
	}
	if _, ok := r.Fields()["lux"]; ok {
		t.Error("Fields() contains lux for a payload without the lux flag")
	}
	if r.MAC != "" {
		t.Errorf("MAC = %q, want empty for a 10-byte payload", r.MAC)
	}
}

func TestDecodeBParasiteWithLux(t *testing.T) {
	data := []byte{
		0x21, 0x05, // protocol 2, lux flag, counter 5
		0x0B, 0xB8, // 3000 mV
		0xF8, 0x30, // -2000 centi-degrees
		0x40, 0x00, // 25 %
		0xC0, 0x00, // 75 %
		0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff,
		0x01, 0xF4, // 500 lx
	}

	r, err := DecodeBParasite(data)
	if err != nil {
		t.Fatalf("DecodeBParasite() error = %v", err)
	}
	if r.Counter != 5 {
		t.Errorf("Counter = %d, want 5", r.Counter)
	}
	if !approx(r.Battery, 3.0) {
		t.Errorf("Battery = %v, want 3.0", r.Battery)
	}
	if !approx(r.Temperature, -20.0) {
		t.Errorf("Temperature = %v, want -20", r.Temperature)
	}
	if !approx(r.Moisture, 75.0) {
		t.Errorf("Moisture = %v, want 75", r.Moisture)
	}
	if !r.HasLux || !approx(r.Lux, 500) {
		t.Errorf("Lux = %v (has %v), want 500", r.Lux, r.HasLux)
	}
	if r.MAC != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("MAC = %q", r.MAC)
	}
	if seq, ok := r.Sequence(); !ok || seq != 5 {
		t.Errorf("Sequence() = %d, %v", seq, ok)
	}
}

func TestDecodeBParasiteRejects(t *testing.T) {
	valid := []byte{0x20, 0x00, 0x64, 0x00, 0x0A, 0x00, 0x80, 0x00, 0x40, 0x00}

	withFirst := func(b byte) []byte {
		out := append([]byte(nil), valid...)
		out[0] = b
		return out
	}

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "empty", data: nil, wantErr: ErrTruncatedBuffer},
		{name: "nine bytes", data: valid[:9], wantErr: ErrTruncatedBuffer},
		{name: "protocol 1", data: withFirst(0x10), wantErr: ErrUnsupportedFormat},
		{name: "protocol 3", data: withFirst(0x30), wantErr: ErrUnsupportedFormat},
		{name: "protocol 0 all ones", data: withFirst(0x0F), wantErr: ErrUnsupportedFormat},
		{name: "encrypted", data: withFirst(0x28), wantErr: ErrEncrypted},
		{name: "lux flag without lux bytes", data: withFirst(0x21), wantErr: ErrTruncatedBuffer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := DecodeBParasite(tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("error = %v, want ErrUnsupportedFormat family", err)
			}
			if r != nil {
				t.Errorf("record = %+v, want nil", r)
			}
		})
	}
}

func TestButtonFromAction(t *testing.T) {
	tests := []struct {
		action      uint8
		wantButton  int
		wantPressed bool
		wantOK      bool
	}{
		{action: 3, wantButton: 1, wantPressed: true, wantOK: true},
		{action: 2, wantButton: 1, wantPressed: false, wantOK: true},
		{action: 5, wantButton: 2, wantPressed: true, wantOK: true},
		{action: 4, wantButton: 2, wantPressed: false, wantOK: true},
		{action: 9, wantButton: 3, wantPressed: true, wantOK: true},
		{action: 8, wantButton: 3, wantPressed: false, wantOK: true},
		{action: 17, wantButton: 4, wantPressed: true, wantOK: true},
		{action: 16, wantButton: 4, wantPressed: false, wantOK: true},
		{action: 99},
		{action: 0},
		{action: 7},
	}

	for _, tt := range tests {
		button, pressed, ok := ButtonFromAction(tt.action)
		if button != tt.wantButton || pressed != tt.wantPressed || ok != tt.wantOK {
			t.Errorf("ButtonFromAction(%d) = (%d, %v, %v), want (%d, %v, %v)",
				tt.action, button, pressed, ok, tt.wantButton, tt.wantPressed, tt.wantOK)
		}
	}
}

func TestDecodePTM215B(t *testing.T) {
	ev, err := DecodePTM215B([]byte{0x01, 0x02, 0x00, 0x00, 0x05, 0xde, 0xad, 0xbe, 0xef})
	if err != nil {
		t.Fatalf("DecodePTM215B() error = %v", err)
	}
	if ev.SequenceCounter != 0x0201 {
		t.Errorf("SequenceCounter = %#x, want 0x0201", ev.SequenceCounter)
	}
	if ev.Button != 2 || !ev.Pressed {
		t.Errorf("Button = %d pressed = %v, want 2 pressed", ev.Button, ev.Pressed)
	}

	ev, err = DecodePTM215B([]byte{0x00, 0x00, 0x00, 0x00, 99})
	if err != nil {
		t.Fatalf("DecodePTM215B() error = %v", err)
	}
	if ev.Button != 0 {
		t.Errorf("Button = %d for action 99, want 0", ev.Button)
	}

	if _, err := DecodePTM215B([]byte{0x01, 0x02, 0x03, 0x04}); !errors.Is(err, ErrTruncatedBuffer) {
		t.Errorf("short payload error = %v, want ErrTruncatedBuffer", err)
	}
}

func TestDecodePTM215BAdvData(t *testing.T) {
	adv := []byte{0x0C, 0xFF, 0xDA, 0x03, 0x10, 0x00, 0x00, 0x01, 0x03, 0x11, 0x22, 0x33, 0x44}

	ev, err := DecodePTM215BAdvData(adv)
	if err != nil {
		t.Fatalf("DecodePTM215BAdvData() error = %v", err)
	}
	if ev.SequenceCounter != 0x01000010 {
		t.Errorf("SequenceCounter = %#x, want 0x01000010", ev.SequenceCounter)
	}
	if ev.Action != 3 || ev.Button != 1 || !ev.Pressed {
		t.Errorf("event = %+v, want button 1 pressed", ev)
	}

	other := append([]byte(nil), adv...)
	other[2] = 0x59
	other[3] = 0x00
	if _, err := DecodePTM215BAdvData(other); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("foreign company error = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := DecodePTM215BAdvData(adv[:8]); !errors.Is(err, ErrTruncatedBuffer) {
		t.Errorf("short adv error = %v, want ErrTruncatedBuffer", err)
	}
}

func TestDecodeMopeka(t *testing.T) {
	data := []byte{0x03, 0x60, 0x3C, 0x10, 0xC1, 0x12, 0x34, 0x56, 0xFC, 0x08}

	r, err := DecodeMopeka(data)
	if err != nil {
		t.Fatalf("DecodeMopeka() error = %v", err)
	}

	if !approx(r.BatteryVoltage, 3.0) {
		t.Errorf("BatteryVoltage = %v, want 3.0", r.BatteryVoltage)
	}
	if r.TemperatureC != 20 {
		t.Errorf("TemperatureC = %d, want 20", r.TemperatureC)
	}
	if r.Quality != 3 {
		t.Errorf("Quality = %d, want 3", r.Quality)
	}
	if r.RawTime != 0x0110 {
		t.Errorf("RawTime = %#x, want 0x0110", r.RawTime)
	}
	if r.TankLevelMM != 105 {
		t.Errorf("TankLevelMM = %d, want 105", r.TankLevelMM)
	}
	if !approx(r.AccelY, -4.0/1024) || !approx(r.AccelX, 8.0/1024) {
		t.Errorf("Accel = (%v, %v)", r.AccelX, r.AccelY)
	}
	if r.ID != 0x123456 {
		t.Errorf("ID = %#x, want 0x123456", r.ID)
	}
	if !r.Valid {
		t.Error("Valid = false, want true for quality 3")
	}
}

func TestDecodeMopekaLowQuality(t *testing.T) {
	data := []byte{0x08, 0x60, 0x3C, 0x10, 0x41, 0x00, 0x00, 0x01, 0x00, 0x00}
	r, err := DecodeMopeka(data)
	if err != nil {
		t.Fatalf("DecodeMopeka() error = %v", err)
	}
	if r.Quality != 1 || r.Valid {
		t.Errorf("Quality = %d Valid = %v, want 1 and false", r.Quality, r.Valid)
	}
}

func TestDecodeMopekaRejects(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "empty", data: nil, wantErr: ErrTruncatedBuffer},
		{name: "unknown type", data: []byte{0x05, 0, 0, 0, 0, 0, 0, 0, 0, 0}, wantErr: ErrUnsupportedFormat},
		{name: "short", data: []byte{0x03, 0x60, 0x3C}, wantErr: ErrTruncatedBuffer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if r, err := DecodeMopeka(tt.data); !errors.Is(err, tt.wantErr) || r != nil {
				t.Errorf("DecodeMopeka() = %v, %v, want nil, %v", r, err, tt.wantErr)
			}
		})
	}
}

func TestMopekaTankLevel(t *testing.T) {
	tests := []struct {
		raw  uint16
		temp int
		want int
	}{
		{raw: 0, temp: 60, want: 0},
		{raw: 272, temp: 60, want: 105},
		{raw: 1000, temp: 40, want: 452},
	}
	for _, tt := range tests {
		if got := MopekaTankLevel(tt.raw, tt.temp); got != tt.want {
			t.Errorf("MopekaTankLevel(%d, %d) = %d, want %d", tt.raw, tt.temp, got, tt.want)
		}
	}
}

func TestDecodeRuuvi(t *testing.T) {
	data := []byte{
		0x05, 0x12, 0xFC, 0x53, 0x94, 0xC3, 0x7C, 0x00,
		0x04, 0xFF, 0xFC, 0x04, 0x0C, 0xAC, 0x36, 0x42,
		0x00, 0xCD, 0xCB, 0xB8, 0x33, 0x4C, 0x88, 0x4F,
	}

	r, err := DecodeRuuvi(data)
	if err != nil {
		t.Fatalf("DecodeRuuvi() error = %v", err)
	}
	if !approx(r.Temperature, 24.3) {
		t.Errorf("Temperature = %v, want 24.3", r.Temperature)
	}
	if !approx(r.Humidity, 53.49) {
		t.Errorf("Humidity = %v, want 53.49", r.Humidity)
	}
	if r.Pressure != 100044 {
		t.Errorf("Pressure = %d, want 100044", r.Pressure)
	}
	if r.AccelX != 4 || r.AccelY != -4 || r.AccelZ != 1036 {
		t.Errorf("Accel = (%d, %d, %d)", r.AccelX, r.AccelY, r.AccelZ)
	}
	if r.BatteryMV != 2977 {
		t.Errorf("BatteryMV = %d, want 2977", r.BatteryMV)
	}
	if r.TxPower != 4 {
		t.Errorf("TxPower = %d, want 4", r.TxPower)
	}
	if r.MovementCounter != 66 || r.SequenceNumber != 205 {
		t.Errorf("MovementCounter = %d Sequence = %d", r.MovementCounter, r.SequenceNumber)
	}
	if r.MAC != "cb:b8:33:4c:88:4f" {
		t.Errorf("MAC = %q", r.MAC)
	}

	if _, err := DecodeRuuvi(data[:20]); !errors.Is(err, ErrTruncatedBuffer) {
		t.Errorf("short error = %v, want ErrTruncatedBuffer", err)
	}
	bad := append([]byte{0x03}, data[1:]...)
	if _, err := DecodeRuuvi(bad); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("format 3 error = %v, want ErrUnsupportedFormat", err)
	}
}
