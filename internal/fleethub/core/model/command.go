package model

import "time"

// CommandAction is the domain action carried by an outbound command.
type CommandAction string

const (
	ActionUnlock CommandAction = "unlock"
)

// CommandStatus defines the lifecycle phase of an outbound command.
type CommandStatus string

const (
	CommandStatusPending      CommandStatus = "Pending"
	CommandStatusAcknowledged CommandStatus = "Acknowledged"
	CommandStatusFailed       CommandStatus = "Failed"
	CommandStatusTimedOut     CommandStatus = "TimedOut"
	CommandStatusCancelled    CommandStatus = "Cancelled"
)

// Terminal reports whether no further transition can happen.
func (s CommandStatus) Terminal() bool {
	return s != CommandStatusPending
}

// Command represents an instruction sent to a vehicle.
type Command struct {
	// Token is the unique correlation token of this request.
	Token string `json:"token"`

	// VehicleID is the target vehicle.
	VehicleID string `json:"vehicleID"`

	// Action is the domain action, e.g. unlock.
	Action CommandAction `json:"action"`

	// Attempts counts transport publish attempts so far.
	Attempts int `json:"attempts"`

	Status CommandStatus `json:"status"`

	// CreatedAt is when the command was issued.
	CreatedAt time.Time `json:"createdAt"`
}

// CommandPayload is the wire payload published on the command channel.
type CommandPayload struct {
	Action CommandAction `json:"action"`
}
