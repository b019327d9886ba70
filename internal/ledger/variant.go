package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/tidwall/gjson"
)

// ErrMalformedVariant is returned when a tagged value does not carry
// exactly one key.
var ErrMalformedVariant = errors.New("malformed variant")

// Variant is a tagged value encoded as a single-key JSON object, e.g.
// {"Completed":null} or {"BasicReviewer":{"stake":300000}}.
type Variant struct {
	Tag     string
	Payload json.RawMessage
}

// Tagged builds a variant with no payload.
func Tagged(tag string) Variant {
	return Variant{Tag: tag}
}

// TaggedWith builds a variant carrying payload.
func TaggedWith(tag string, payload any) (Variant, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Variant{}, fmt.Errorf("failed to marshal %s payload: %w", tag, err)
	}
	return Variant{Tag: tag, Payload: raw}, nil
}

// MarshalJSON implements json.Marshaler.
func (v Variant) MarshalJSON() ([]byte, error) {
	if v.Tag == "" {
		return nil, fmt.Errorf("%w: empty tag", ErrMalformedVariant)
	}
	payload := v.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return json.Marshal(map[string]json.RawMessage{v.Tag: payload})
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Variant) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("%w: invalid json", ErrMalformedVariant)
	}
	res := gjson.ParseBytes(data)
	if !res.IsObject() {
		return fmt.Errorf("%w: expected object, got %s", ErrMalformedVariant, res.Type)
	}

	count := 0
	res.ForEach(func(key, value gjson.Result) bool {
		count++
		v.Tag = key.String()
		v.Payload = json.RawMessage(value.Raw)
		return true
	})
	if count != 1 {
		return fmt.Errorf("%w: expected one key, got %d", ErrMalformedVariant, count)
	}
	return nil
}

// Opt encodes an optional value as [] or [value].
type Opt[T any] struct {
	Value T
	Set   bool
}

// Some wraps a present value.
func Some[T any](v T) Opt[T] {
	return Opt[T]{Value: v, Set: true}
}

// OptString treats the empty string as absent.
func OptString(s string) Opt[string] {
	if s == "" {
		return Opt[string]{}
	}
	return Some(s)
}

// Ptr returns a pointer to the value or nil.
func (o Opt[T]) Ptr() *T {
	if !o.Set {
		return nil
	}
	v := o.Value
	return &v
}

// MarshalJSON implements json.Marshaler.
func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("[]"), nil
	}
	return json.Marshal([]T{o.Value})
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("failed to decode optional: %w", err)
	}
	switch len(items) {
	case 0:
		*o = Opt[T]{}
	case 1:
		*o = Some(items[0])
	default:
		return fmt.Errorf("optional carries %d values", len(items))
	}
	return nil
}

// result is the write-call envelope {"Ok": ...} or {"Err": "..."}.
type result struct {
	Variant
}

func okResult(payload any) (result, error) {
	v, err := TaggedWith("Ok", payload)
	return result{v}, err
}

func errResult(msg string) result {
	raw, _ := json.Marshal(msg)
	return result{Variant{Tag: "Err", Payload: raw}}
}

// Nanos converts a time to nanoseconds since the epoch. The zero time and
// any time before the epoch are 0.
func Nanos(t time.Time) uint64 {
	if t.IsZero() || t.Before(time.Unix(0, 0)) {
		return 0
	}
	return uint64(t.UnixNano())
}

// FromNanos converts nanoseconds since the epoch to a time. 0 is the zero
// time; values past the int64 range clamp to its end.
func FromNanos(ns uint64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	if ns > math.MaxInt64 {
		ns = math.MaxInt64
	}
	return time.Unix(0, int64(ns)).UTC()
}
