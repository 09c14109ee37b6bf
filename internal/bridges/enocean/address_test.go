package enocean

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Address
		wantErr bool
	}{
		{"canonical", "FF-AA-80-00", Address{0xFF, 0xAA, 0x80, 0x00}, false},
		{"lower case", "fe-db-da-01", Address{0xFE, 0xDB, 0xDA, 0x01}, false},
		{"chip id", "00-00-00-01", Address{0x00, 0x00, 0x00, 0x01}, false},
		{"trailing word", "FF-AA-80-00 left", Address{0xFF, 0xAA, 0x80, 0x00}, false},
		{"surrounding space", "  05-1A-2B-3C  ", Address{0x05, 0x1A, 0x2B, 0x3C}, false},
		{"empty", "", Address{}, true},
		{"three bytes", "FF-AA-80", Address{}, true},
		{"five bytes", "FF-AA-80-00-01", Address{}, true},
		{"colon separated", "FF:AA:80:00", Address{}, true},
		{"single digit byte", "F-AA-80-00", Address{}, true},
		{"non hex", "GG-AA-80-00", Address{}, true},
		{"compact", "FFAA8000", Address{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddress(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAddress(%q) expected error, got %v", tt.input, got)
				}
				if !errors.Is(err, ErrInvalidAddress) {
					t.Errorf("ParseAddress(%q) error = %v, want ErrInvalidAddress", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAddress(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseAddress(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestAddressFormatting(t *testing.T) {
	addr := Address{0xFF, 0xAA, 0x80, 0x00}

	if got := addr.String(); got != "FF-AA-80-00" {
		t.Errorf("String() = %q, want FF-AA-80-00", got)
	}
	if got := addr.Hex(); got != "ffaa8000" {
		t.Errorf("Hex() = %q, want ffaa8000", got)
	}
	text, err := addr.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error: %v", err)
	}
	if string(text) != "FF-AA-80-00" {
		t.Errorf("MarshalText() = %q", text)
	}

	// Round trip through the textual form.
	back, err := ParseAddress(addr.String())
	if err != nil || back != addr {
		t.Errorf("round trip = %v, %v", back, err)
	}
}

func TestAddressIsZero(t *testing.T) {
	if !(Address{}).IsZero() {
		t.Error("zero address should report IsZero")
	}
	if (Address{0, 0, 0, 1}).IsZero() {
		t.Error("00-00-00-01 should not report IsZero")
	}
}

func TestAddressFromBytes(t *testing.T) {
	addr, err := AddressFromBytes([]byte{0x01, 0x02, 0x03, 0x04, 0x05})
	if err != nil {
		t.Fatalf("AddressFromBytes() error: %v", err)
	}
	if addr != (Address{0x01, 0x02, 0x03, 0x04}) {
		t.Errorf("AddressFromBytes() = %v", addr)
	}

	if _, err := AddressFromBytes([]byte{0x01, 0x02}); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("AddressFromBytes(short) error = %v, want ErrInvalidAddress", err)
	}
}

func TestAddressJSON(t *testing.T) {
	in := struct {
		Sender Address `json:"sender"`
	}{Address{0xFF, 0xAA, 0x80, 0x00}}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if string(data) != `{"sender":"FF-AA-80-00"}` {
		t.Errorf("Marshal() = %s", data)
	}

	var out struct {
		Sender Address `json:"sender"`
	}
	if err := json.Unmarshal(data, &out); err != nil || out.Sender != in.Sender {
		t.Errorf("Unmarshal() = %v, %v", out.Sender, err)
	}
	if err := json.Unmarshal([]byte(`{"sender":"nope"}`), &out); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("Unmarshal(invalid) error = %v, want ErrInvalidAddress", err)
	}
}
