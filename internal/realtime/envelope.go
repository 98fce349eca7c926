package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/samber/mo"
)

// Identity is the account a connection declares itself to belong to.
type Identity string

// MessageType discriminates the realtime envelope.
type MessageType string

const (
	TypeAuth        MessageType = "auth"
	TypeEventUpdate MessageType = "event_update"
)

// Envelope is the inbound wire shape. Data is kept raw; the relay never looks inside it.
type Envelope struct {
	Type   MessageType     `json:"type"`
	UserID json.RawMessage `json:"userId,omitempty"`
	Token  string          `json:"token,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// ParseEnvelope decodes raw into an Envelope. Keys must match exactly; a
// "Type" or "userid" member is ignored rather than folded onto its field.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Envelope{}, err
	}

	var env Envelope
	if v, ok := fields["type"]; ok {
		if err := json.Unmarshal(v, &env.Type); err != nil {
			return Envelope{}, fmt.Errorf("type: %w", err)
		}
	}
	if v, ok := fields["token"]; ok {
		if err := json.Unmarshal(v, &env.Token); err != nil {
			return Envelope{}, fmt.Errorf("token: %w", err)
		}
	}
	env.UserID = fields["userId"]
	env.Data = fields["data"]
	return env, nil
}

// ParseIdentity normalizes a declared userId. Numbers and strings are accepted,
// so 7 and "7" name the same account. Empty strings, zero, null and any other
// JSON kind yield None.
func ParseIdentity(raw json.RawMessage) mo.Option[Identity] {
	if len(raw) == 0 {
		return mo.None[Identity]()
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return mo.None[Identity]()
	}

	switch id := v.(type) {
	case string:
		if id == "" {
			return mo.None[Identity]()
		}
		return mo.Some(Identity(id))
	case json.Number:
		f, err := id.Float64()
		if err != nil || f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return mo.None[Identity]()
		}
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return mo.Some(Identity(strconv.FormatInt(int64(f), 10)))
		}
		return mo.Some(Identity(strconv.FormatFloat(f, 'g', -1, 64)))
	}
	return mo.None[Identity]()
}

type outbound struct {
	Type MessageType `json:"type"`
	Data any         `json:"data"`
}

// NewEventUpdate encodes a server-originated event_update envelope.
func NewEventUpdate(data any) ([]byte, error) {
	return json.Marshal(outbound{Type: TypeEventUpdate, Data: data})
}
