package transit

// TransitEvent describes one recorded transit.
type TransitEvent struct {
	// Body is the transiting body's name.
	Body string `json:"body"`

	// Index is the body's position in the scanned slice.
	Index int `json:"index"`

	// Number is the zero-based count of this transit for the body.
	Number int `json:"number"`

	// Time is the mid-transit time in days.
	Time float64 `json:"time"`

	// Iterations is the number of bisection steps used.
	Iterations int `json:"iterations"`

	// Bracket is the width of the final bracket in days.
	Bracket float64 `json:"bracket"`
}

// Observer is notified synchronously of every recorded transit.
type Observer interface {
	OnTransit(ev TransitEvent)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ev TransitEvent)

// OnTransit calls f(ev).
func (f ObserverFunc) OnTransit(ev TransitEvent) { f(ev) }
