// Package analysis implements the time-series statistics behind the insights
// endpoints: SPC temperature outliers (Butterworth trend and DCT methods),
// LOF precipitation anomalies, robust STL decomposition and spectrograms.
//
// Functions operate on plain float64 slices sampled hourly. Callers are
// responsible for ordering samples by time and dropping missing values.
// Results are index based so they can be mapped back onto timestamps.
package analysis

import "errors"

// ErrInvalidInput is returned for parameters or inputs an analysis cannot run on.
var ErrInvalidInput = errors.New("invalid analysis input")
