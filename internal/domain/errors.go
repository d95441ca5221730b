package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyGroup is returned when ordering is asked for a group with no
	// members. Grouping never produces one, so seeing it is an internal bug.
	ErrEmptyGroup = errors.New("empty group")

	// ErrDuplicateInstance matches every DuplicateInstanceError.
	ErrDuplicateInstance = errors.New("duplicate instance")
)

// DuplicateInstanceError records a file excluded from a group because another
// file in the same group carries the same SOP instance UID.
type DuplicateInstanceError struct {
	Path           string
	KeptPath       string
	SOPInstanceUID string
	Key            GroupKey
}

func (e *DuplicateInstanceError) Error() string {
	return fmt.Sprintf("duplicate SOP instance %s: %s excluded, %s kept", e.SOPInstanceUID, e.Path, e.KeptPath)
}

func (e *DuplicateInstanceError) Is(target error) bool {
	return target == ErrDuplicateInstance
}

// GroupError reports a group that could not be ordered.
type GroupError struct {
	Key GroupKey
	Err error
}

func (e *GroupError) Error() string {
	return fmt.Sprintf("series %s: %v", e.Key.ID(), e.Err)
}

func (e *GroupError) Unwrap() error {
	return e.Err
}
