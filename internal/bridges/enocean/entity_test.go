package enocean

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// mockLogger records log calls.
type mockLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	Level string
	Msg   string
	Args  []any
}

func (l *mockLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{Level: level, Msg: msg, Args: args})
}

func (l *mockLogger) Debug(msg string, kv ...any) { l.record("debug", msg, kv) }
func (l *mockLogger) Info(msg string, kv ...any)  { l.record("info", msg, kv) }
func (l *mockLogger) Warn(msg string, kv ...any)  { l.record("warn", msg, kv) }
func (l *mockLogger) Error(msg string, kv ...any) { l.record("error", msg, kv) }

// count returns how many entries match level and msg.
func (l *mockLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.Level == level && e.Msg == msg {
			n++
		}
	}
	return n
}

// recordingPublisher captures entity output.
type recordingPublisher struct {
	mu        sync.Mutex
	states    []stateCall
	events    []eventCall
	telemetry []Fields
}

type stateCall struct {
	EntityID string
	On       bool
}

type eventCall struct {
	EntityID string
	Kind     EventKind
}

func (p *recordingPublisher) PublishState(entityID string, on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, stateCall{entityID, on})
}

func (p *recordingPublisher) FireEvent(entityID string, kind EventKind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventCall{entityID, kind})
}

func (p *recordingPublisher) PublishTelemetry(_ string, fields Fields) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.telemetry = append(p.telemetry, fields)
}

func (p *recordingPublisher) getStates() []stateCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]stateCall(nil), p.states...)
}

func (p *recordingPublisher) getEvents() []eventCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]eventCall(nil), p.events...)
}

func mustAddress(t *testing.T, s string) Address {
	t.Helper()
	a, err := ParseAddress(s)
	if err != nil {
		t.Fatalf("ParseAddress(%q): %v", s, err)
	}
	return a
}

func TestBinarySensorIdentity(t *testing.T) {
	s := NewBinarySensor(EntityOptions{
		Device:    DeviceIdentity{Address: mustAddress(t, "FF-AA-80-00"), Name: "Kitchen window"},
		EEP:       EEPF61000,
		GatewayID: "fam14",
	})

	if got := s.UniqueID(); got != "eltako_ffaa8000_window" {
		t.Errorf("UniqueID() = %q", got)
	}
	if got := s.EntityID(); got != "binary_sensor.eltako_ffaa8000_window" {
		t.Errorf("EntityID() = %q", got)
	}
	if s.Platform() != PlatformBinarySensor {
		t.Errorf("Platform() = %q", s.Platform())
	}

	info := s.DeviceInfo()
	want := DeviceInfo{
		Identifier:   "eltako_ffaa8000",
		Name:         "Kitchen window",
		Manufacturer: "Eltako",
		Model:        "F6-10-00",
		ViaDevice:    "fam14",
	}
	if info != want {
		t.Errorf("DeviceInfo() = %+v, want %+v", info, want)
	}
}

func TestBinarySensorDeviceClassOverride(t *testing.T) {
	s := NewBinarySensor(EntityOptions{
		Device:      DeviceIdentity{Address: mustAddress(t, "01-02-03-04")},
		EEP:         EEPD50001,
		DeviceClass: "window",
	})
	if got := s.UniqueID(); got != "eltako_01020304_window" {
		t.Errorf("UniqueID() = %q", got)
	}
	if got := s.Snapshot().DeviceClass; got != "window" {
		t.Errorf("DeviceClass = %q", got)
	}
}

func TestBinarySensorValueChanged(t *testing.T) {
	pub := &recordingPublisher{}
	addr := mustAddress(t, "05-00-00-01")
	s := NewBinarySensor(EntityOptions{
		Device:    DeviceIdentity{Address: addr, Name: "Front door"},
		EEP:       EEPD50001,
		Publisher: pub,
	})

	if _, ok := s.IsOn(); ok {
		t.Fatal("state should be unknown before the first telegram")
	}
	if snap := s.Snapshot(); snap.On != nil || snap.LastUpdated != nil {
		t.Error("snapshot should carry no state before the first telegram")
	}

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ValueChanged(Telegram{ORG: ORG1BS, Data: []byte{0x08}, Sender: addr, Timestamp: ts})

	on, ok := s.IsOn()
	if !ok || !on {
		t.Fatalf("IsOn() = %t, %t; want true, true", on, ok)
	}
	states := pub.getStates()
	if len(states) != 1 || states[0] != (stateCall{"binary_sensor.eltako_05000001_door", true}) {
		t.Fatalf("states = %+v", states)
	}
	snap := s.Snapshot()
	if snap.On == nil || !*snap.On || snap.LastUpdated == nil || !snap.LastUpdated.Equal(ts) {
		t.Errorf("snapshot = %+v", snap)
	}

	// Teach-in telegram leaves state alone.
	s.ValueChanged(Telegram{ORG: ORG1BS, Data: []byte{0x01}, Sender: addr})
	if len(pub.getStates()) != 1 {
		t.Error("teach-in telegram should not publish")
	}

	s.ValueChanged(Telegram{ORG: ORG1BS, Data: []byte{0x09}, Sender: addr})
	if on, _ := s.IsOn(); on {
		t.Error("closed contact should report off")
	}
	if len(pub.getStates()) != 2 {
		t.Error("closed contact should publish")
	}

	if len(pub.telemetry) != 2 {
		t.Errorf("telemetry calls = %d, want 2 (teach-in excluded)", len(pub.telemetry))
	}
}

func TestOccupancyTeachInSkipsTelemetry(t *testing.T) {
	pub := &recordingPublisher{}
	addr := mustAddress(t, "01-82-5D-AB")
	s := NewBinarySensor(EntityOptions{
		Device:    DeviceIdentity{Address: addr},
		EEP:       EEPA50801,
		Publisher: pub,
	})

	// DB0 bit 3 clear: teach-in, the other bytes describe the profile.
	s.ValueChanged(Telegram{ORG: ORG4BS, Data: []byte{0x20, 0x08, 0x0D, 0x80}, Sender: addr})
	if len(pub.telemetry) != 0 {
		t.Fatalf("teach-in produced telemetry: %+v", pub.telemetry)
	}

	s.ValueChanged(Telegram{ORG: ORG4BS, Data: []byte{0xFA, 0x64, 0x80, 0x0D}, Sender: addr})
	if len(pub.telemetry) != 1 {
		t.Fatalf("telemetry calls = %d, want 1", len(pub.telemetry))
	}
	f, ok := pub.telemetry[0].(OccupancyFields)
	if !ok || f.LearnButton != 1 || f.OccupancyButton != 1 {
		t.Errorf("telemetry = %+v", pub.telemetry[0])
	}
}

func TestBinarySensorDecodeFailure(t *testing.T) {
	pub := &recordingPublisher{}
	logger := &mockLogger{}
	addr := mustAddress(t, "05-00-00-02")
	s := NewBinarySensor(EntityOptions{
		Device:    DeviceIdentity{Address: addr},
		EEP:       EEPA50801,
		Publisher: pub,
		Logger:    logger,
	})

	// RPS telegram cannot decode under a 4BS profile.
	s.ValueChanged(Telegram{ORG: ORGRPS, Data: []byte{0x30}, Sender: addr})

	if logger.count("warn", "Could not decode message") != 1 {
		t.Error("expected one decode warning")
	}
	if len(pub.getStates()) != 0 || len(pub.telemetry) != 0 {
		t.Error("decode failure should produce no output")
	}
	if _, ok := s.IsOn(); ok {
		t.Error("state should remain unknown")
	}
}

func TestButtonEventIdentity(t *testing.T) {
	addr := mustAddress(t, "FE-DB-DA-01")
	b := NewButtonEvent(EntityOptions{
		Device: DeviceIdentity{Address: addr, Name: "Hall switch"},
		EEP:    EEPF60201,
	}, ChannelA0)

	if got := b.UniqueID(); got != "eltako_fedbda01_button_A0" {
		t.Errorf("UniqueID() = %q", got)
	}
	if got := b.EntityID(); got != "event.eltako_fedbda01_button_A0" {
		t.Errorf("EntityID() = %q", got)
	}
	if b.Channel() != ChannelA0 || b.Platform() != PlatformEvent {
		t.Errorf("Channel() = %s, Platform() = %s", b.Channel(), b.Platform())
	}
	if et := b.EventTypes(); len(et) != 1 || et[0] != "button_pressed" {
		t.Errorf("EventTypes() = %v", et)
	}
	snap := b.Snapshot()
	if snap.Channel != ChannelA0 || snap.DeviceClass != "button" || snap.LastEvent != nil {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestButtonEventValueChanged(t *testing.T) {
	pub := &recordingPublisher{}
	addr := mustAddress(t, "FE-DB-DA-01")
	opts := EntityOptions{
		Device:    DeviceIdentity{Address: addr},
		EEP:       EEPF60202,
		Publisher: pub,
	}
	a0 := NewButtonEvent(opts, ChannelA0)
	b0 := NewButtonEvent(opts, ChannelB0)

	press := Telegram{ORG: ORGRPS, Data: []byte{0x30}, Sender: addr}
	a0.ValueChanged(press)
	b0.ValueChanged(press)

	events := pub.getEvents()
	if len(events) != 1 || events[0] != (eventCall{"event.eltako_fedbda01_button_A0", ButtonPressed}) {
		t.Fatalf("events = %+v", events)
	}
	if a0.Snapshot().LastEvent == nil {
		t.Error("A0 should record the last event time")
	}
	if b0.Snapshot().LastEvent != nil {
		t.Error("B0 should not record an event")
	}

	// Release fires nothing.
	a0.ValueChanged(Telegram{ORG: ORGRPS, Data: []byte{0x00}, Sender: addr})
	if len(pub.getEvents()) != 1 {
		t.Error("release telegram should not fire")
	}
}

func TestEntityWithoutPublisher(t *testing.T) {
	addr := mustAddress(t, "05-00-00-03")
	s := NewBinarySensor(EntityOptions{Device: DeviceIdentity{Address: addr}, EEP: EEPD50001})
	s.ValueChanged(Telegram{ORG: ORG1BS, Data: []byte{0x08}, Sender: addr})
	if on, ok := s.IsOn(); !ok || !on {
		t.Errorf("IsOn() = %t, %t", on, ok)
	}

	b := NewButtonEvent(EntityOptions{Device: DeviceIdentity{Address: addr}, EEP: EEPF60201}, ChannelA1)
	b.ValueChanged(Telegram{ORG: ORGRPS, Data: []byte{0x10}, Sender: addr})
	if b.Snapshot().LastEvent == nil {
		t.Error("event should be recorded without a publisher")
	}
}

// failingDecoder always fails, to exercise the decoder seam.
type failingDecoder struct{}

func (failingDecoder) Decode(eep EEP, _ Telegram) (Fields, error) {
	return nil, fmt.Errorf("%w: forced for %s", ErrDecodeFailed, eep)
}

func TestEntityCustomDecoder(t *testing.T) {
	pub := &recordingPublisher{}
	logger := &mockLogger{}
	addr := mustAddress(t, "05-00-00-04")
	b := NewButtonEvent(EntityOptions{
		Device:    DeviceIdentity{Address: addr},
		EEP:       EEPF60201,
		Decoder:   failingDecoder{},
		Publisher: pub,
		Logger:    logger,
	}, ChannelA1)

	b.ValueChanged(Telegram{ORG: ORGRPS, Data: []byte{0x10}, Sender: addr})
	if len(pub.getEvents()) != 0 {
		t.Error("failing decoder should suppress events")
	}
	if logger.count("warn", "Could not decode message") != 1 {
		t.Error("expected one decode warning")
	}
}
