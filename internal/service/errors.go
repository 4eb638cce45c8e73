package service

import "errors"

var (
	// ErrInvalidPlan is returned when a pricing plan is malformed.
	ErrInvalidPlan = errors.New("invalid pricing plan")

	// ErrInsufficientFunds is returned when a wallet cannot cover an operation.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrPoolExhausted is returned when no eligible candidate remains. This is
	// a normal outcome, not a failure; the order goes back to PENDING for
	// manual re-dispatch.
	ErrPoolExhausted = errors.New("candidate pool exhausted")

	// ErrStaleAcceptance is returned when an accept references an offer that
	// has expired or moved on. Logged, never user-fatal.
	ErrStaleAcceptance = errors.New("stale acceptance")

	// ErrAlreadyTerminal is returned for any mutating call against a
	// COMPLETED or CANCELLED order.
	ErrAlreadyTerminal = errors.New("order already terminal")

	// ErrEstimatorUnavailable is returned when the distance/ETA dependency
	// fails; trip start is blocked until an estimate succeeds.
	ErrEstimatorUnavailable = errors.New("estimator unavailable")

	// ErrOrderNotPending is returned when dispatch is requested for an order
	// not in PENDING state.
	ErrOrderNotPending = errors.New("order not in pending state")

	// ErrOrderNotDispatching is returned when an acceptance arrives for an
	// order with no dispatch in progress.
	ErrOrderNotDispatching = errors.New("order not dispatching")

	// ErrVehicleNotAssigned is returned when a trip call names a vehicle that
	// is not assigned to the order.
	ErrVehicleNotAssigned = errors.New("vehicle not assigned to this order")

	// ErrInvalidTripState is returned when a trip call arrives in the wrong
	// order state.
	ErrInvalidTripState = errors.New("invalid trip state for this operation")

	// ErrInvalidOrderID is returned when an order ID is empty.
	ErrInvalidOrderID = errors.New("invalid order id")

	// ErrInvalidVehicleID is returned when a vehicle ID is empty.
	ErrInvalidVehicleID = errors.New("invalid vehicle id")

	// ErrInvalidAmount is returned when a wallet amount is zero or negative.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidLocation is returned when coordinates are out of range.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrVehicleBusy is returned when a fleet operation targets a vehicle
	// currently holding an assignment.
	ErrVehicleBusy = errors.New("vehicle is busy")

	// ErrUnrecognizedReply is returned when a driver chat reply carries no
	// display code the parser understands.
	ErrUnrecognizedReply = errors.New("unrecognized reply")
)
