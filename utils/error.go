package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrorImportInProgress is returned when another import already holds the
// per-business lock.
var ErrorImportInProgress = errors.New("another import is already running for this business")

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
