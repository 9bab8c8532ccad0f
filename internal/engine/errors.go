package engine

import "errors"

var (
	// ErrJumpDuringListening rejects direct navigation while the audio paces the attempt.
	ErrJumpDuringListening = errors.New("navigation is locked during the listening section")
	// ErrJumpOutOfRange rejects a jump to an index outside the reading section.
	ErrJumpOutOfRange = errors.New("jump target is outside the reading section")
	// ErrNotSimulation is returned for sequencer operations on a practice attempt.
	ErrNotSimulation = errors.New("operation requires a simulation attempt")
	// ErrNotPractice is returned for part selection on a simulation attempt.
	ErrNotPractice = errors.New("operation requires a practice attempt")
	// ErrInvalidPart is returned for a part number outside 1-7.
	ErrInvalidPart = errors.New("part number must be between 1 and 7")
	// ErrUnknownQuestion is returned when an order-number is not on the sheet.
	ErrUnknownQuestion = errors.New("order number is not on the answer sheet")
	// ErrNotStarted is returned when the session has not loaded its items yet.
	ErrNotStarted = errors.New("session has not started")
	// ErrSubmitInProgress is returned when a submission is already in flight.
	ErrSubmitInProgress = errors.New("submission already in progress")
	// ErrClosed is returned for operations on a closed session.
	ErrClosed = errors.New("session is closed")
)
