package enocean

import (
	"fmt"
	"strings"
)

// EEP identifies an EnOcean Equipment Profile supported by this bridge.
//
// The set is closed: every switch over EEP in this package lists all
// values, so adding a profile means touching each decode and interpret
// branch explicitly.
type EEP int

const (
	// EEPUnknown is the zero value and never decodes.
	EEPUnknown EEP = iota

	// EEPF61000 is a window handle (Hoppe SecuSignal, Eltako FTKE-rw).
	EEPF61000

	// EEPD50001 is a single-input contact (Eltako FTK, FTKB).
	EEPD50001

	// EEPA50801 is an occupancy sensor with illumination and temperature
	// (Eltako FBH).
	EEPA50801

	// EEPF60201 is a two-rocker switch, application style 1.
	EEPF60201

	// EEPF60202 is a two-rocker switch, application style 2.
	EEPF60202
)

// Platform is the kind of entity a profile is exposed as.
type Platform string

const (
	PlatformBinarySensor Platform = "binary_sensor"
	PlatformEvent        Platform = "event"
)

// eepNames maps the canonical profile string to its EEP.
var eepNames = map[string]EEP{
	"F6-10-00": EEPF61000,
	"D5-00-01": EEPD50001,
	"A5-08-01": EEPA50801,
	"F6-02-01": EEPF60201,
	"F6-02-02": EEPF60202,
}

// ParseEEP resolves a profile string such as "F6-02-01".
// Matching is case-insensitive and ignores surrounding whitespace.
//
// Returns:
//   - EEP: The resolved profile
//   - error: ErrUnsupportedEEP if the string names no supported profile
func ParseEEP(s string) (EEP, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	if e, ok := eepNames[key]; ok {
		return e, nil
	}
	return EEPUnknown, fmt.Errorf("%w: %q", ErrUnsupportedEEP, s)
}

// String returns the canonical profile string.
func (e EEP) String() string {
	switch e {
	case EEPF61000:
		return "F6-10-00"
	case EEPD50001:
		return "D5-00-01"
	case EEPA50801:
		return "A5-08-01"
	case EEPF60201:
		return "F6-02-01"
	case EEPF60202:
		return "F6-02-02"
	case EEPUnknown:
	}
	return "unknown"
}

// ORG returns the ESP2 telegram type this profile is carried in.
func (e EEP) ORG() ORG {
	switch e {
	case EEPF61000, EEPF60201, EEPF60202:
		return ORGRPS
	case EEPD50001:
		return ORG1BS
	case EEPA50801:
		return ORG4BS
	case EEPUnknown:
	}
	return 0
}

// Platform returns the entity platform for this profile.
func (e EEP) Platform() Platform {
	switch e {
	case EEPF61000, EEPD50001, EEPA50801:
		return PlatformBinarySensor
	case EEPF60201, EEPF60202:
		return PlatformEvent
	case EEPUnknown:
	}
	return ""
}

// DefaultDeviceClass returns the device class used when the
// configuration does not name one.
func (e EEP) DefaultDeviceClass() string {
	switch e {
	case EEPF61000:
		return "window"
	case EEPD50001:
		return "door"
	case EEPA50801:
		return "motion"
	case EEPF60201, EEPF60202:
		return "button"
	case EEPUnknown:
	}
	return ""
}

// MarshalText implements encoding.TextMarshaler.
func (e EEP) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText accepts the MarshalText form, including "unknown".
func (e *EEP) UnmarshalText(text []byte) error {
	if string(text) == "unknown" {
		*e = EEPUnknown
		return nil
	}
	parsed, err := ParseEEP(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
