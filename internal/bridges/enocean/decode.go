package enocean

import "fmt"

// Fields is the decoded payload of one telegram under one profile.
// Each profile has its own concrete type; Profile reports which EEP
// produced the value so interpreters never read fields of a foreign schema.
type Fields interface {
	Profile() EEP
}

// WindowHandleFields is the F6-10-00 payload.
type WindowHandleFields struct {
	// Movement is the raw handle byte; bits 6..4 carry the position code.
	Movement byte
}

// Profile implements Fields.
func (WindowHandleFields) Profile() EEP { return EEPF61000 }

// ContactFields is the D5-00-01 payload.
type ContactFields struct {
	// LearnButton is 0 for a teach-in telegram, 1 for normal data.
	LearnButton byte

	// Contact is 0 when open, 1 when closed.
	Contact byte
}

// Profile implements Fields.
func (ContactFields) Profile() EEP { return EEPD50001 }

func (f ContactFields) teachIn() bool { return f.LearnButton == 0 }

// OccupancyFields is the A5-08-01 payload.
type OccupancyFields struct {
	// SupplyVoltage in volts, 0 to 5.1.
	SupplyVoltage float64

	// Illumination in lux, 0 to 510.
	Illumination float64

	// Temperature in degrees Celsius, 0 to 51.
	Temperature float64

	// LearnButton is 0 for a teach-in telegram, 1 for normal data.
	LearnButton byte

	// PIRStatus is the motion detector bit.
	PIRStatus byte

	// OccupancyButton is the presence button bit.
	OccupancyButton byte
}

// Profile implements Fields.
func (OccupancyFields) Profile() EEP { return EEPA50801 }

func (f OccupancyFields) teachIn() bool { return f.LearnButton == 0 }

// isTeachIn reports whether fields came from a 1BS or 4BS teach-in
// telegram, whose data bytes carry the profile instead of measurements.
func isTeachIn(fields Fields) bool {
	t, ok := fields.(interface{ teachIn() bool })
	return ok && t.teachIn()
}

// RockerFields is the F6-02-01 / F6-02-02 payload.
//
// A rocker telegram carries two action slots. The first slot is pressed
// when EnergyBow is 1; the second slot is valid when SecondAction is 1.
type RockerFields struct {
	// EEP is F6-02-01 or F6-02-02.
	EEP EEP

	RockerFirstAction  byte
	EnergyBow          byte
	RockerSecondAction byte
	SecondAction       byte
}

// Profile implements Fields.
func (f RockerFields) Profile() EEP { return f.EEP }

// Decoder turns a raw telegram into profile fields.
// Implementations must fail with ErrDecodeFailed on schema mismatch.
type Decoder interface {
	Decode(eep EEP, t Telegram) (Fields, error)
}

// ProfileDecoder decodes the profiles listed in EEP.
type ProfileDecoder struct{}

// Ensure ProfileDecoder implements Decoder.
var _ Decoder = ProfileDecoder{}

// Scaling factors for A5-08-01 (0..255 raw range).
const (
	occupancyVoltageStep     = 0.02 // 5.1 V / 255
	occupancyIlluminanceStep = 2.0  // 510 lx / 255
	occupancyTemperatureStep = 0.2  // 51 C / 255
)

// Decode validates the telegram against the profile's ORG and data length,
// then extracts the profile fields.
//
// Parameters:
//   - eep: Profile the sending device was configured with
//   - t: Received telegram
//
// Returns:
//   - Fields: One of the profile field types above
//   - error: ErrDecodeFailed on ORG or length mismatch, or an unknown profile
func (ProfileDecoder) Decode(eep EEP, t Telegram) (Fields, error) {
	want := eep.ORG()
	if want == 0 {
		return nil, fmt.Errorf("%w: no schema for %s", ErrDecodeFailed, eep)
	}
	if t.ORG != want {
		return nil, fmt.Errorf("%w: %s expects %s telegram, got %s", ErrDecodeFailed, eep, want, t.ORG)
	}
	if len(t.Data) < want.DataLen() {
		return nil, fmt.Errorf("%w: %s needs %d data bytes, got %d", ErrDecodeFailed, eep, want.DataLen(), len(t.Data))
	}

	switch eep {
	case EEPF61000:
		return WindowHandleFields{Movement: t.Data[0]}, nil

	case EEPD50001:
		b := t.Data[0]
		return ContactFields{
			LearnButton: (b >> 3) & 0x01,
			Contact:     b & 0x01,
		}, nil

	case EEPA50801:
		db0 := t.Data[3]
		return OccupancyFields{
			SupplyVoltage:   float64(t.Data[0]) * occupancyVoltageStep,
			Illumination:    float64(t.Data[1]) * occupancyIlluminanceStep,
			Temperature:     float64(t.Data[2]) * occupancyTemperatureStep,
			LearnButton:     (db0 >> 3) & 0x01,
			PIRStatus:       (db0 >> 1) & 0x01,
			OccupancyButton: db0 & 0x01,
		}, nil

	case EEPF60201, EEPF60202:
		b := t.Data[0]
		return RockerFields{
			EEP:                eep,
			RockerFirstAction:  (b >> 5) & 0x07,
			EnergyBow:          (b >> 4) & 0x01,
			RockerSecondAction: (b >> 1) & 0x07,
			SecondAction:       b & 0x01,
		}, nil

	case EEPUnknown:
	}
	return nil, fmt.Errorf("%w: no schema for %s", ErrDecodeFailed, eep)
}
