package ble

// Kind identifies the format a Record was decoded from.
type Kind string

// Record kinds.
const (
	KindPTM215B   Kind = "ptm215b"
	KindBParasite Kind = "bparasite"
	KindMopeka    Kind = "mopeka"
	KindBTHome    Kind = "bthome"
	KindRuuvi     Kind = "ruuvi"
)

// Record is a decoded advertisement. The concrete types are *ButtonEvent,
// *BParasiteReading, *MopekaReading, *BTHomeRecord and *RuuviReading; switch
// on the type or on Kind.
type Record interface {
	// Kind returns the format discriminant.
	Kind() Kind

	// Fields returns the reading as a flat name to value map. Values are
	// float64, int64 or bool.
	Fields() map[string]any

	// Sequence returns the device's packet counter, if the format has one.
	Sequence() (uint32, bool)

	isRecord()
}
