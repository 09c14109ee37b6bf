package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-enocean/internal/bridges/enocean"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name  string
		eep   string
		frame string
		want  []string
	}{
		{
			name:  "window handle down",
			eep:   "F6-10-00",
			frame: "A55A0B05F0000000002DCF453071",
			want:  []string{"sender:   00-2D-CF-45", "F6-10-00 (binary_sensor)", "state:    StateUpdate(false)"},
		},
		{
			name:  "rocker A0 pressed",
			eep:   "f6-02-01",
			frame: "a5 5a 0b 05 30 00 00 00 00 2d cf 45 30 b1",
			want:  []string{"A0:       EventFired(button_pressed)", "A1:       NoChange", "B0:       NoChange"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := decodeFrame(&out, tt.eep, tt.frame); err != nil {
				t.Fatalf("decodeFrame() error: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out.String(), w) {
					t.Errorf("output missing %q:\n%s", w, out.String())
				}
			}
		})
	}
}

func TestDecodeFrameErrors(t *testing.T) {
	tests := []struct {
		name    string
		eep     string
		frame   string
		wantErr error
		want    string
	}{
		{"unknown eep", "A5-02-05", "A55A0B05F0000000002DCF453071", enocean.ErrUnsupportedEEP, ""},
		{"bad hex", "F6-10-00", "A55Z", nil, "invalid hex frame"},
		{"empty", "F6-10-00", "  ", nil, "empty frame"},
		{"bad checksum", "F6-10-00", "A55A0B05F0000000002DCF453072", nil, "parsing frame"},
		{"wrong org", "D5-00-01", "A55A0B05F0000000002DCF453071", enocean.ErrDecodeFailed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := decodeFrame(&bytes.Buffer{}, tt.eep, tt.frame)
			if err == nil {
				t.Fatal("decodeFrame() should fail")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.want != "" && !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestParseHexFrame(t *testing.T) {
	for _, in := range []string{"a55a", "A5 5A", "A5-5A", "a5:5a", "0xA5 0x5A"} {
		b, err := parseHexFrame(in)
		if err != nil {
			t.Errorf("parseHexFrame(%q) error: %v", in, err)
			continue
		}
		if !bytes.Equal(b, []byte{0xA5, 0x5A}) {
			t.Errorf("parseHexFrame(%q) = % X", in, b)
		}
	}
}
