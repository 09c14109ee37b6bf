package enocean

import (
	"fmt"
	"strings"
	"time"
)

// ESP2 framing constants.
//
// An ESP2 frame is always 14 bytes:
//
//	Byte 0-1:  Sync (0xA5 0x5A)
//	Byte 2:    H_SEQ (upper 3 bits) | LENGTH (lower 5 bits, always 0x0B)
//	Byte 3:    ORG (0x05 RPS, 0x06 1BS, 0x07 4BS)
//	Byte 4-7:  DATA_BYTE3 .. DATA_BYTE0
//	Byte 8-11: ID_BYTE3 .. ID_BYTE0
//	Byte 12:   STATUS
//	Byte 13:   CHECKSUM (sum of bytes 2..12, low byte)
const (
	SyncByte1 byte = 0xA5
	SyncByte2 byte = 0x5A

	// FrameSize is the total length of an ESP2 frame in bytes.
	FrameSize = 14

	// frameLength is the LENGTH field value: ORG through CHECKSUM.
	frameLength byte = 0x0B

	lengthMask byte = 0x1F
	hseqShift       = 5

	// repeaterCountMask selects the repeater counter in the STATUS byte.
	repeaterCountMask byte = 0x0F
)

// HSeq is the ESP2 header sequence identifying the telegram direction.
type HSeq byte

const (
	// HSeqRRT is a Receive Radio Telegram (gateway to host).
	HSeqRRT HSeq = 0x00

	// HSeqTRT is a Transmit Radio Telegram (host to gateway).
	HSeqTRT HSeq = 0x03

	// HSeqRMT is a Receive Message Telegram (gateway response).
	HSeqRMT HSeq = 0x04

	// HSeqTCT is a Transmit Command Telegram (gateway command).
	HSeqTCT HSeq = 0x05
)

// ORG is the ESP2 telegram type.
type ORG byte

const (
	// ORGRPS is a repeated switch telegram (RORG F6).
	ORGRPS ORG = 0x05

	// ORG1BS is a 1-byte sensor telegram (RORG D5).
	ORG1BS ORG = 0x06

	// ORG4BS is a 4-byte sensor telegram (RORG A5).
	ORG4BS ORG = 0x07
)

// RORG returns the radio ORG that prefixes EEP identifiers for this type.
func (o ORG) RORG() byte {
	switch o {
	case ORGRPS:
		return 0xF6
	case ORG1BS:
		return 0xD5
	case ORG4BS:
		return 0xA5
	}
	return 0x00
}

// DataLen returns the number of meaningful data bytes for this type.
func (o ORG) DataLen() int {
	switch o {
	case ORGRPS, ORG1BS:
		return 1
	case ORG4BS:
		return 4 //nolint:mnd // 4BS carries DB3..DB0
	}
	return 0
}

// String returns a short name for logging.
func (o ORG) String() string {
	switch o {
	case ORGRPS:
		return "RPS"
	case ORG1BS:
		return "1BS"
	case ORG4BS:
		return "4BS"
	}
	return fmt.Sprintf("ORG(0x%02X)", byte(o))
}

// Frame is a parsed ESP2 frame.
type Frame struct {
	HSeq   HSeq
	ORG    ORG
	Data   [4]byte // DATA_BYTE3 first
	ID     Address
	Status byte
}

// Checksum computes the ESP2 checksum over header, body, and status.
//
// Parameters:
//   - b: Bytes 2..12 of a frame (11 bytes)
func Checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}

// ParseFrame parses a complete 14-byte ESP2 frame.
//
// Returns:
//   - Frame: Parsed frame
//   - error: ErrInvalidFrame for bad sync/length, ErrChecksumMismatch for bad checksum
func ParseFrame(b []byte) (Frame, error) {
	if len(b) != FrameSize {
		return Frame{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidFrame, FrameSize, len(b))
	}
	if b[0] != SyncByte1 || b[1] != SyncByte2 {
		return Frame{}, fmt.Errorf("%w: bad sync 0x%02X 0x%02X", ErrInvalidFrame, b[0], b[1])
	}
	if b[2]&lengthMask != frameLength {
		return Frame{}, fmt.Errorf("%w: length field 0x%02X", ErrInvalidFrame, b[2]&lengthMask)
	}
	if want := Checksum(b[2:13]); b[13] != want {
		return Frame{}, fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrChecksumMismatch, b[13], want)
	}

	f := Frame{
		HSeq:   HSeq(b[2] >> hseqShift),
		ORG:    ORG(b[3]),
		Status: b[12],
	}
	copy(f.Data[:], b[4:8])
	copy(f.ID[:], b[8:12])
	return f, nil
}

// Encode renders the frame as 14 wire bytes with a valid checksum.
func (f Frame) Encode() []byte {
	b := make([]byte, FrameSize)
	b[0] = SyncByte1
	b[1] = SyncByte2
	b[2] = byte(f.HSeq)<<hseqShift | frameLength
	b[3] = byte(f.ORG)
	copy(b[4:8], f.Data[:])
	copy(b[8:12], f.ID[:])
	b[12] = f.Status
	b[13] = Checksum(b[2:13])
	return b
}

// Telegram converts the frame into a radio telegram.
func (f Frame) Telegram() Telegram {
	n := f.ORG.DataLen()
	if n == 0 {
		n = len(f.Data)
	}
	data := make([]byte, n)
	copy(data, f.Data[:n])
	return Telegram{
		ORG:       f.ORG,
		Data:      data,
		Sender:    f.ID,
		Status:    f.Status,
		Timestamp: time.Now(),
	}
}

// Telegram is a single radio telegram received from (or sent to) the bus.
type Telegram struct {
	// ORG is the telegram type.
	ORG ORG

	// Data holds the payload, DATA_BYTE3 first. One byte for RPS/1BS,
	// four for 4BS.
	Data []byte

	// Sender is the transmitting device's ID.
	Sender Address

	// Status is the ESP2 status byte (T21/NU flags and repeater count).
	Status byte

	// Timestamp records when the telegram was received or created.
	Timestamp time.Time
}

// RepeatCount returns how many repeaters forwarded this telegram.
func (t Telegram) RepeatCount() int {
	return int(t.Status & repeaterCountMask)
}

// Frame builds an ESP2 frame for this telegram with the given direction.
func (t Telegram) Frame(hseq HSeq) Frame {
	f := Frame{
		HSeq:   hseq,
		ORG:    t.ORG,
		ID:     t.Sender,
		Status: t.Status,
	}
	copy(f.Data[:], t.Data)
	return f
}

// Bytes returns the radio view of the telegram: RORG, data, sender, status.
func (t Telegram) Bytes() []byte {
	b := make([]byte, 0, 1+len(t.Data)+addressByteCount+1)
	b = append(b, t.ORG.RORG())
	b = append(b, t.Data...)
	b = append(b, t.Sender[:]...)
	b = append(b, t.Status)
	return b
}

// String renders the radio view as space-separated hex, e.g. "f6 10 00 2d cf 45 30".
func (t Telegram) String() string {
	raw := t.Bytes()
	parts := make([]string, len(raw))
	for i, v := range raw {
		parts[i] = fmt.Sprintf("%02x", v)
	}
	return strings.Join(parts, " ")
}

// Frame decoder states.
const (
	stateIdle = iota
	stateSync
	stateBody
)

// FrameDecoder reassembles ESP2 frames from a byte stream.
//
// Bytes are fed one at a time; the decoder hunts for the A5 5A sync
// sequence, collects the remaining 12 bytes, and validates the frame.
// After any error it returns to hunting for sync.
//
// Not safe for concurrent use.
type FrameDecoder struct {
	state int
	buf   []byte
}

// NewFrameDecoder creates a decoder waiting for sync.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{buf: make([]byte, 0, FrameSize)}
}

// Reset discards any partial frame.
func (d *FrameDecoder) Reset() {
	d.state = stateIdle
	d.buf = d.buf[:0]
}

// DecodeByte processes one byte.
// Returns a frame when one completes, nil while incomplete, or an error
// when a frame fails validation. After an error the decoder resynchronises
// on the next A5 5A among the bytes it had already buffered, so a truncated
// frame does not take the following frame down with it.
func (d *FrameDecoder) DecodeByte(b byte) (*Frame, error) {
	f, rejected, err := d.step(b)
	if err != nil {
		d.resync(rejected)
	}
	return f, err
}

// step advances the state machine by one byte. On error it returns every
// byte of the failed frame, including b.
func (d *FrameDecoder) step(b byte) (*Frame, []byte, error) {
	switch d.state {
	case stateIdle:
		if b == SyncByte1 {
			d.buf = append(d.buf[:0], b)
			d.state = stateSync
		}
		return nil, nil, nil

	case stateSync:
		switch b {
		case SyncByte2:
			d.buf = append(d.buf, b)
			d.state = stateBody
		case SyncByte1:
			// stay in sync state; this may be the real start
		default:
			d.Reset()
		}
		return nil, nil, nil

	case stateBody:
		if len(d.buf) == 2 && b&lengthMask != frameLength {
			rejected := append(append([]byte(nil), d.buf...), b)
			return nil, rejected, fmt.Errorf("%w: length field 0x%02X", ErrInvalidFrame, b&lengthMask)
		}
		d.buf = append(d.buf, b)
		if len(d.buf) < FrameSize {
			return nil, nil, nil
		}
		f, err := ParseFrame(d.buf)
		if err != nil {
			return nil, append([]byte(nil), d.buf...), err
		}
		d.Reset()
		return &f, nil, nil
	}

	d.Reset()
	return nil, nil, nil
}

// resync drops the first rejected byte and replays the rest. Nested
// failures are not reported; the caller already has one error for them.
func (d *FrameDecoder) resync(rejected []byte) {
	d.Reset()
	if len(rejected) < 2 {
		return
	}
	for _, c := range rejected[1:] {
		if _, again, err := d.step(c); err != nil {
			d.resync(again)
		}
	}
}
