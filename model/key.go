package model

import "strings"

// KeyValue is one dimension value of a key.
type KeyValue struct {
	ID    string
	Value string
}

// Key is an ordered mapping from dimension id to value, one entry per
// dimension for a full key, a subset for a partial key. Order follows the
// owning DSD's dimension order. Two keys are equal iff all entries match
// positionally.
type Key struct {
	values []KeyValue
}

// KeyOf builds a key from ordered dimension/value pairs as given. Keys built
// against a DSD should use DSD.MakeKey, which validates and orders entries.
func KeyOf(pairs ...KeyValue) Key {
	return Key{values: pairs}
}

func (k Key) Len() int { return len(k.values) }

// Values returns the ordered entries. The returned slice must not be
// mutated.
func (k Key) Values() []KeyValue { return k.values }

// Get returns the value for a dimension id.
func (k Key) Get(id string) (string, bool) {
	for _, kv := range k.values {
		if kv.ID == id {
			return kv.Value, true
		}
	}
	return "", false
}

// Equal reports positional equality.
func (k Key) Equal(other Key) bool {
	if len(k.values) != len(other.values) {
		return false
	}
	for i, kv := range k.values {
		if other.values[i] != kv {
			return false
		}
	}
	return true
}

// Map returns the entries as a dimension-id to value map.
func (k Key) Map() map[string]string {
	m := make(map[string]string, len(k.values))
	for _, kv := range k.values {
		m[kv.ID] = kv.Value
	}
	return m
}

func (k Key) String() string {
	parts := make([]string, len(k.values))
	for i, kv := range k.values {
		parts[i] = kv.ID + "=" + kv.Value
	}
	return strings.Join(parts, ",")
}

// OrderKey returns the colon-joined value string, usable as a deterministic
// sort key for series emission.
func (k Key) OrderKey() string {
	parts := make([]string, len(k.values))
	for i, kv := range k.values {
		parts[i] = kv.Value
	}
	return strings.Join(parts, ":")
}

// Matches reports whether every entry of the (partial) key k is present with
// the same value in full.
func (k Key) Matches(full Key) bool {
	for _, kv := range k.values {
		v, ok := full.Get(kv.ID)
		if !ok || v != kv.Value {
			return false
		}
	}
	return true
}
