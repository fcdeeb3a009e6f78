package domain

import (
	"errors"
	"fmt"
)

// MaxBatchSize is the largest batch applied atomically. Azure Tables caps an
// entity group transaction at 100 operations; every backend enforces the
// same bound so behaviour does not depend on the store in use.
const MaxBatchSize = 100

// Errors shared by the stores, the HTTP API and its clients.
var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrEmptyBatch    = errors.New("batch update has no entries")
	ErrBatchTooLarge = fmt.Errorf("batch update exceeds %d entries", MaxBatchSize)
	ErrInvalidBatch  = errors.New("invalid batch update")
	ErrEmptyPatch    = errors.New("patch has no fields")
	ErrMissingOwner  = errors.New("task owner is required")
)
