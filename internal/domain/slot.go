package domain

import "time"

// Slot is a quantized business-hours window expressed as absolute instants.
// Label carries the wall-clock start time ("09:30") in the business zone.
type Slot struct {
	StartAt time.Time
	EndAt   time.Time
	Label   string
}

// SlotAvailability tags a slot for the availability read path.
type SlotAvailability struct {
	Slot
	Available bool
}
