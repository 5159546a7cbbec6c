package services

import (
	"encoding/json"

	"github.com/sjperalta/covenantops-api/internal/models"
)

// Optional tracks whether a JSON field was present. A present null leaves
// Value nil with Set true.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some builds a present, non-null Optional
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null builds a present null Optional
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

type changeSet map[string]models.FieldChange

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// setRequired applies a non-nullable patch field, recording the change
func setRequired[T any](changes changeSet, field string, opt Optional[T], dst *T, eq func(a, b T) bool) error {
	if !opt.Set {
		return nil
	}
	if opt.Value == nil {
		return invalid(field, "must not be null")
	}
	if eq(*dst, *opt.Value) {
		return nil
	}
	changes[field] = models.FieldChange{From: *dst, To: *opt.Value}
	*dst = *opt.Value
	return nil
}

// setNullable applies a nullable patch field, recording the change
func setNullable[T any](changes changeSet, field string, opt Optional[T], dst **T, eq func(a, b T) bool) {
	if !opt.Set {
		return
	}
	cur := *dst
	next := opt.Value
	switch {
	case cur == nil && next == nil:
		return
	case cur != nil && next != nil && eq(*cur, *next):
		return
	}
	changes[field] = models.FieldChange{From: deref(cur), To: deref(next)}
	if next == nil {
		*dst = nil
		return
	}
	v := *next
	*dst = &v
}

func equal[T comparable](a, b T) bool {
	return a == b
}
