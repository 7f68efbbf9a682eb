package booking

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("booking: not found")
	ErrConflict     = errors.New("booking: conflict")
	ErrInvalidInput = errors.New("booking: invalid input")
	// ErrSlotTaken reports that at least one requested slot already has a
	// booking. It matches ErrConflict under errors.Is.
	ErrSlotTaken = fmt.Errorf("%w: slot already booked", ErrConflict)
)
