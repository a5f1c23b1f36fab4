package dispatch

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// storedOutcome is the cached form of an Outcome.
type storedOutcome struct {
	Data    any          `json:"d"`
	Exposed bool         `json:"x,omitempty"`
	Side    *SideChannel `json:"s,omitempty"`
}

// EncodeOutcome serialises o, side channel included, with msgpack.
// Structs inside the data are encoded under their json field names so a
// decoded outcome renders to the same JSON as the original.
func EncodeOutcome(o Outcome) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.SetSortMapKeys(true)

	if err := enc.Encode(storedOutcome{Data: o.data, Exposed: o.side != nil, Side: o.side}); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrCodec, err)
	}
	return buf.Bytes(), nil
}

// DecodeOutcome restores an Outcome written by EncodeOutcome.
// Maps decode as map[string]any and numbers as int64, uint64 or float64.
func DecodeOutcome(b []byte) (Outcome, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.SetCustomStructTag("json")
	dec.UseLooseInterfaceDecoding(true)

	var s storedOutcome
	if err := dec.Decode(&s); err != nil {
		return Outcome{}, fmt.Errorf("%w: decode: %v", ErrCodec, err)
	}
	if !s.Exposed {
		return Plain(s.Data), nil
	}
	if s.Side == nil {
		s.Side = &SideChannel{}
	}
	return WithSideChannel(s.Data, *s.Side), nil
}
