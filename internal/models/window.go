package models

import "time"

// Window is a closed [Start, End] time range occupied by a rental.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewWindow(start, end time.Time) Window {
	return Window{Start: start, End: end}
}

// Valid reports whether Start is not after End.
func (w Window) Valid() bool {
	return !w.Start.After(w.End)
}

// Overlaps uses inclusive bounds: windows touching at one instant conflict.
func (w Window) Overlaps(other Window) bool {
	return Overlaps(w.Start, w.End, other.Start, other.End)
}

// Overlaps reports aStart <= bEnd && aEnd >= bStart.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !aEnd.Before(bStart)
}
