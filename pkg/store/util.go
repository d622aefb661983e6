package store

import (
	"encoding/json"
	"errors"
	"fmt"
)

// resourceRef addresses one stored resource.
type resourceRef struct {
	Type, Scope, Name string
}

func (r resourceRef) key() []byte {
	return []byte(r.Type + "/" + r.Scope + "/" + r.Name)
}

func (r resourceRef) String() string {
	return r.Type + " " + r.Scope + "/" + r.Name
}

func (r resourceRef) notFound() error {
	return fmt.Errorf("%s: %w", r, ErrNotFound)
}

func (r resourceRef) alreadyExists() error {
	return fmt.Errorf("%s: %w", r, ErrAlreadyExists)
}

type putMode int

const (
	putCreate putMode = iota
	putUpdate
	putUpsert
)

// check reports whether a write in this mode may proceed given whether
// the resource already exists.
func (m putMode) check(ref resourceRef, exists bool) error {
	switch {
	case m == putCreate && exists:
		return ref.alreadyExists()
	case m == putUpdate && !exists:
		return ref.notFound()
	}
	return nil
}

// MakePrefix returns the key prefix of a resource type within scope. A
// scope of "*" or "" covers every scope.
func MakePrefix(resourceType, scope string) []byte {
	if scope == "*" || scope == "" {
		return []byte(resourceType + "/")
	}
	return []byte(resourceType + "/" + scope + "/")
}

// decodeList decodes raw JSON documents into the slice target points to.
func decodeList(raw []json.RawMessage, target interface{}) error {
	if raw == nil {
		raw = []json.RawMessage{}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to decode list: %w", err)
	}
	return nil
}

// IsAlreadyExistsError reports whether err means the resource exists.
func IsAlreadyExistsError(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsNotFoundError reports whether err means the resource is missing.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
