package markers

import "fmt"

// TripStatus is the booking state reported by the trip context
type TripStatus string

const (
	StatusNone           TripStatus = ""
	StatusRequested      TripStatus = "REQUESTED"
	StatusAccepted       TripStatus = "ACCEPTED"
	StatusDriverArriving TripStatus = "DRIVER_ARRIVING"
	StatusDriverArrived  TripStatus = "DRIVER_ARRIVED"
	StatusInProgress     TripStatus = "IN_PROGRESS"
	StatusCompleted      TripStatus = "COMPLETED"
	StatusCancelled      TripStatus = "CANCELLED"
	StatusNoDriver       TripStatus = "NO_DRIVER"
)

// ShowsDestination reports whether the trip destination marker is visible in this status
func (s TripStatus) ShowsDestination() bool {
	switch s {
	case StatusAccepted, StatusDriverArriving, StatusDriverArrived, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// ParseTripStatus converts a status string. The empty string means no trip.
func ParseTripStatus(s string) (TripStatus, error) {
	switch status := TripStatus(s); status {
	case StatusNone, StatusRequested, StatusAccepted, StatusDriverArriving, StatusDriverArrived,
		StatusInProgress, StatusCompleted, StatusCancelled, StatusNoDriver:
		return status, nil
	}
	return "", fmt.Errorf("unknown trip status %q", s)
}
