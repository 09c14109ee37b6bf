package enocean

import (
	"errors"
	"testing"
)

func TestParseEEP(t *testing.T) {
	tests := []struct {
		input   string
		want    EEP
		wantErr bool
	}{
		{"F6-10-00", EEPF61000, false},
		{"D5-00-01", EEPD50001, false},
		{"A5-08-01", EEPA50801, false},
		{"F6-02-01", EEPF60201, false},
		{"F6-02-02", EEPF60202, false},
		{"f6-02-01", EEPF60201, false},
		{" a5-08-01 ", EEPA50801, false},
		{"A5-02-05", EEPUnknown, true},
		{"F6-02", EEPUnknown, true},
		{"", EEPUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseEEP(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedEEP) {
					t.Errorf("ParseEEP(%q) error = %v, want ErrUnsupportedEEP", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEEP(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseEEP(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestEEPProperties(t *testing.T) {
	tests := []struct {
		eep      EEP
		name     string
		org      ORG
		platform Platform
		class    string
	}{
		{EEPF61000, "F6-10-00", ORGRPS, PlatformBinarySensor, "window"},
		{EEPD50001, "D5-00-01", ORG1BS, PlatformBinarySensor, "door"},
		{EEPA50801, "A5-08-01", ORG4BS, PlatformBinarySensor, "motion"},
		{EEPF60201, "F6-02-01", ORGRPS, PlatformEvent, "button"},
		{EEPF60202, "F6-02-02", ORGRPS, PlatformEvent, "button"},
		{EEPUnknown, "unknown", 0, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eep.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			if got := tt.eep.ORG(); got != tt.org {
				t.Errorf("ORG() = %v, want %v", got, tt.org)
			}
			if got := tt.eep.Platform(); got != tt.platform {
				t.Errorf("Platform() = %q, want %q", got, tt.platform)
			}
			if got := tt.eep.DefaultDeviceClass(); got != tt.class {
				t.Errorf("DefaultDeviceClass() = %q, want %q", got, tt.class)
			}
		})
	}
}

func TestEEPStringRoundTrip(t *testing.T) {
	for _, e := range []EEP{EEPF61000, EEPD50001, EEPA50801, EEPF60201, EEPF60202} {
		back, err := ParseEEP(e.String())
		if err != nil || back != e {
			t.Errorf("ParseEEP(%q) = %v, %v", e.String(), back, err)
		}
	}
}

func TestEEPUnmarshalText(t *testing.T) {
	var e EEP
	if err := e.UnmarshalText([]byte("a5-08-01")); err != nil || e != EEPA50801 {
		t.Errorf("UnmarshalText(a5-08-01) = %v, %v", e, err)
	}
	if err := e.UnmarshalText([]byte("unknown")); err != nil || e != EEPUnknown {
		t.Errorf("UnmarshalText(unknown) = %v, %v", e, err)
	}
	if err := e.UnmarshalText([]byte("F6-99-99")); !errors.Is(err, ErrUnsupportedEEP) {
		t.Errorf("UnmarshalText(F6-99-99) error = %v, want ErrUnsupportedEEP", err)
	}
}
