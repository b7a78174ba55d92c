package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady means no database connection could be established.
	ErrNotReady = errors.New("schema not ready: no database connection")
	// ErrUnmappedEntity is returned when Stage receives a type with no table.
	ErrUnmappedEntity = errors.New("unmapped entity")
)

// SchemaError reports an operation on a table the gateway does not own.
type SchemaError struct {
	Table string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("unknown table %q", e.Table)
}

type StageKind string

const (
	KindConstraint  StageKind = "constraint"
	KindDuplicate   StageKind = "duplicate"
	KindUnmapped    StageKind = "unmapped"
	KindUnknownCity StageKind = "unknown-city"
)

// StageError is returned by Batch.Stage. The batch is already rolled back
// when it is returned.
type StageError struct {
	Kind   StageKind
	Entity string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s (%s): %v", e.Entity, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
