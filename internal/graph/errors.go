package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrRootNotFound matches any RootNotFoundError via errors.Is.
	ErrRootNotFound = errors.New("graph: root not found")
	// ErrDuplicateID matches any DuplicateIDError via errors.Is.
	ErrDuplicateID = errors.New("graph: duplicate extension id")
)

// RootNotFoundError reports that no declaration carries the requested root id.
type RootNotFoundError struct {
	RootID string
}

func (e *RootNotFoundError) Error() string {
	return fmt.Sprintf("no root node with id '%s' found in app graph", e.RootID)
}

func (e *RootNotFoundError) Is(target error) bool {
	return target == ErrRootNotFound
}

// DuplicateIDError reports the first id that appears twice in the input.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("unexpected duplicate extension id '%s'", e.ID)
}

func (e *DuplicateIDError) Is(target error) bool {
	return target == ErrDuplicateID
}
