package steps

import "errors"

var (
	// ErrSensorUnavailable indicates the device has no usable step sensor
	ErrSensorUnavailable = errors.New("step sensor unavailable")

	// ErrPermissionDenied indicates the user refused, or later revoked, motion permission
	ErrPermissionDenied = errors.New("step sensor permission denied")

	// ErrHistoryQueryFailed indicates the sensor's history could not be read
	// or returned a malformed value
	ErrHistoryQueryFailed = errors.New("step history query failed")

	// ErrStoreIO indicates the durable store could not be read or written
	ErrStoreIO = errors.New("step store io failure")
)
