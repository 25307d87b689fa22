package sim

// TimeTeller reports the virtual time of the event being handled.
type TimeTeller interface {
	CurrentTime() VTimeInSec
}

// EventScheduler accepts events for later handling.
type EventScheduler interface {
	Schedule(e Event)
}

// A SimulationEndHandler is told the final virtual time once a run is over.
type SimulationEndHandler interface {
	Handle(now VTimeInSec)
}

// An Engine handles scheduled events in time order.
type Engine interface {
	Hookable
	TimeTeller
	EventScheduler

	// Run handles events until the queue is empty or a handler fails.
	Run() error

	// RegisterSimulationEndHandler adds a handler for Finished to call.
	RegisterSimulationEndHandler(handler SimulationEndHandler)

	// Finished calls every registered SimulationEndHandler.
	Finished()
}
