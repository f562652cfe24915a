package core

import "errors"

var (
	// Timer schedulers
	ErrCapacityExceeded = errors.New("capacity_exceeded")
	ErrIntervalTooShort = errors.New("interval_too_short")
	ErrInvalidTickRate  = errors.New("invalid_tick_rate")
	ErrNilCallback      = errors.New("nil_callback")

	// Commutation
	ErrInvalidDutyShift = errors.New("invalid_duty_shift")

	// Acquisition
	ErrTransferError = errors.New("dma_transfer_error")
	ErrCalibration   = errors.New("adc_calibration_failed")
)
