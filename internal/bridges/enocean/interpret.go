package enocean

import "fmt"

// ResultKind classifies an interpretation outcome.
type ResultKind int

const (
	// NoChange means the telegram is irrelevant to this entity.
	NoChange ResultKind = iota

	// StateUpdate carries a new boolean state.
	StateUpdate

	// EventFired carries a discrete event.
	EventFired
)

// EventKind names a discrete event an entity can fire.
type EventKind string

// ButtonPressed is fired on the press edge of a rocker channel.
const ButtonPressed EventKind = "button_pressed"

// Result is the outcome of interpreting one telegram for one entity.
type Result struct {
	Kind  ResultKind
	On    bool      // valid when Kind == StateUpdate
	Event EventKind // valid when Kind == EventFired
}

// Unchanged returns a NoChange result.
func Unchanged() Result { return Result{Kind: NoChange} }

// State returns a StateUpdate result.
func State(on bool) Result { return Result{Kind: StateUpdate, On: on} }

// Fired returns an EventFired result.
func Fired(kind EventKind) Result { return Result{Kind: EventFired, Event: kind} }

// String renders the result for logs and the decode command.
func (r Result) String() string {
	switch r.Kind {
	case StateUpdate:
		return fmt.Sprintf("StateUpdate(%t)", r.On)
	case EventFired:
		return fmt.Sprintf("EventFired(%s)", r.Event)
	case NoChange:
	}
	return "NoChange"
}

// Channel is one rocker position on a two-rocker switch.
type Channel string

const (
	ChannelA0 Channel = "A0"
	ChannelA1 Channel = "A1"
	ChannelB0 Channel = "B0"
	ChannelB1 Channel = "B1"
)

// Channels lists the rocker channels in entity registration order.
var Channels = []Channel{ChannelA1, ChannelA0, ChannelB1, ChannelB0}

// Code returns the rocker action code for the channel.
// The bool is false for an unknown channel.
func (c Channel) Code() (byte, bool) {
	switch c {
	case ChannelA1:
		return 0, true
	case ChannelA0:
		return 1, true
	case ChannelB1:
		return 2, true //nolint:mnd // rocker action code
	case ChannelB0:
		return 3, true //nolint:mnd // rocker action code
	}
	return 0, false
}

// Window handle position codes, (movement >> 4) & 0x7.
const (
	handleCodeTilted    = 0x04
	handleCodeDownAlt   = 0x06
	handleCodeDown      = 0x07
	handleMovementShift = 4
	handleMovementMask  = 0x07
)

// InterpretBinary computes the on/off state for a binary sensor profile.
//
// F6-10-00 only ever reports false: codes 7, 4 and 6 map to false and
// every other code is NoChange. D5-00-01 and A5-08-01 ignore teach-in
// telegrams (learn bit 0) and otherwise report contact==0 / pir==0.
//
// Parameters:
//   - eep: Profile the entity was configured with
//   - fields: Fields decoded under eep
//
// Returns:
//   - Result: StateUpdate or NoChange
func InterpretBinary(eep EEP, fields Fields) Result {
	if fields == nil || fields.Profile() != eep {
		return Unchanged()
	}

	switch eep {
	case EEPF61000:
		f, ok := fields.(WindowHandleFields)
		if !ok {
			return Unchanged()
		}
		code := (f.Movement >> handleMovementShift) & handleMovementMask
		switch code {
		case handleCodeDown:
			return State(false)
		case handleCodeTilted, handleCodeDownAlt:
			return State(false)
		}
		return Unchanged()

	case EEPD50001:
		f, ok := fields.(ContactFields)
		if !ok || f.LearnButton == 0 {
			return Unchanged()
		}
		return State(f.Contact == 0)

	case EEPA50801:
		f, ok := fields.(OccupancyFields)
		if !ok || f.LearnButton == 0 {
			return Unchanged()
		}
		return State(f.PIRStatus == 0)

	case EEPF60201, EEPF60202, EEPUnknown:
	}
	return Unchanged()
}

// InterpretButton decides whether channel was pressed in a rocker telegram.
//
// The event fires when the channel's code matches the first action with
// the energy bow pressed, or matches the second action with the second
// action flag set. Release telegrams never fire.
//
// Parameters:
//   - eep: F6-02-01 or F6-02-02
//   - fields: Fields decoded under eep
//   - channel: Rocker channel the entity is bound to
//
// Returns:
//   - Result: EventFired(ButtonPressed) or NoChange
func InterpretButton(eep EEP, fields Fields, channel Channel) Result {
	if fields == nil || fields.Profile() != eep {
		return Unchanged()
	}

	switch eep {
	case EEPF60201, EEPF60202:
		f, ok := fields.(RockerFields)
		if !ok {
			return Unchanged()
		}
		code, ok := channel.Code()
		if !ok {
			return Unchanged()
		}
		if (code == f.RockerFirstAction && f.EnergyBow == 1) ||
			(code == f.RockerSecondAction && f.SecondAction == 1) {
			return Fired(ButtonPressed)
		}
		return Unchanged()

	case EEPF61000, EEPD50001, EEPA50801, EEPUnknown:
	}
	return Unchanged()
}
