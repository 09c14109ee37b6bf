package enocean

import (
	"fmt"
	"sync"
	"time"
)

// Manufacturer is reported in device info for every configured device.
const Manufacturer = "Eltako"

// uniqueIDPrefix prefixes every entity unique ID.
const uniqueIDPrefix = "eltako"

// DeviceIdentity is a configured radio device: its sender ID and display name.
type DeviceIdentity struct {
	Address Address
	Name    string
}

// DeviceInfo describes the physical device an entity belongs to.
type DeviceInfo struct {
	Identifier   string `json:"identifier"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	ViaDevice    string `json:"via_device,omitempty"`
}

// Publisher receives entity output. Both calls are fire-and-forget.
type Publisher interface {
	// PublishState reports a binary sensor's new state.
	PublishState(entityID string, on bool)

	// FireEvent reports a discrete event on an event entity.
	FireEvent(entityID string, kind EventKind)
}

// TelemetryPublisher is optionally implemented by a Publisher that wants
// the decoded fields of every successfully decoded telegram.
type TelemetryPublisher interface {
	PublishTelemetry(entityID string, fields Fields)
}

// Entity is a callback registered against a device address.
type Entity interface {
	UniqueID() string
	EntityID() string
	Address() Address
	Platform() Platform

	// ValueChanged handles one telegram from the entity's address.
	ValueChanged(t Telegram)

	// Snapshot returns the entity's current view for the API.
	Snapshot() EntitySnapshot
}

// EntitySnapshot is a point-in-time copy of an entity's state.
type EntitySnapshot struct {
	EntityID    string     `json:"entity_id"`
	UniqueID    string     `json:"unique_id"`
	Platform    Platform   `json:"platform"`
	Name        string     `json:"name"`
	Address     Address    `json:"address"`
	EEP         EEP        `json:"eep"`
	DeviceClass string     `json:"device_class"`
	Channel     Channel    `json:"channel,omitempty"`
	EventTypes  []string   `json:"event_types,omitempty"`
	On          *bool      `json:"on,omitempty"`
	LastEvent   *time.Time `json:"last_event,omitempty"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
	Device      DeviceInfo `json:"device"`
}

// EntityOptions holds the dependencies shared by every entity constructor.
type EntityOptions struct {
	Device      DeviceIdentity
	EEP         EEP
	DeviceClass string
	GatewayID   string
	Decoder     Decoder
	Publisher   Publisher
	Logger      Logger
}

// baseEntity carries identity and logging shared by both platforms.
type baseEntity struct {
	dev         DeviceIdentity
	eep         EEP
	deviceClass string
	gatewayID   string
	uniqueID    string
	entityID    string
	decoder     Decoder
	publisher   Publisher
	logger      Logger
}

func newBaseEntity(opts EntityOptions, platform Platform, uniqueID string) baseEntity {
	decoder := opts.Decoder
	if decoder == nil {
		decoder = ProfileDecoder{}
	}
	return baseEntity{
		dev:         opts.Device,
		eep:         opts.EEP,
		deviceClass: opts.DeviceClass,
		gatewayID:   opts.GatewayID,
		uniqueID:    uniqueID,
		entityID:    string(platform) + "." + uniqueID,
		decoder:     decoder,
		publisher:   opts.Publisher,
		logger:      opts.Logger,
	}
}

func (e *baseEntity) UniqueID() string { return e.uniqueID }
func (e *baseEntity) EntityID() string { return e.entityID }
func (e *baseEntity) Address() Address { return e.dev.Address }

// DeviceInfo returns the device description for registration.
func (e *baseEntity) DeviceInfo() DeviceInfo {
	return DeviceInfo{
		Identifier:   uniqueIDPrefix + "_" + e.dev.Address.Hex(),
		Name:         e.dev.Name,
		Manufacturer: Manufacturer,
		Model:        e.eep.String(),
		ViaDevice:    e.gatewayID,
	}
}

// decode runs the decoder, logging and returning false on failure.
func (e *baseEntity) decode(t Telegram) (Fields, bool) {
	fields, err := e.decoder.Decode(e.eep, t)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("Could not decode message",
				"entity_id", e.entityID,
				"eep", e.eep.String(),
				"telegram", t.String(),
				"error", err)
		}
		return nil, false
	}
	if tp, ok := e.publisher.(TelemetryPublisher); ok && !isTeachIn(fields) {
		tp.PublishTelemetry(e.entityID, fields)
	}
	return fields, true
}

// BinarySensor exposes a contact, window handle, or occupancy device as an
// on/off state.
type BinarySensor struct {
	baseEntity

	mu      sync.RWMutex
	on      *bool
	updated time.Time
}

// Ensure BinarySensor implements Entity.
var _ Entity = (*BinarySensor)(nil)

// NewBinarySensor creates a binary sensor entity.
// The unique ID is "eltako_<hex address>_<device class>".
func NewBinarySensor(opts EntityOptions) *BinarySensor {
	if opts.DeviceClass == "" {
		opts.DeviceClass = opts.EEP.DefaultDeviceClass()
	}
	uid := fmt.Sprintf("%s_%s_%s", uniqueIDPrefix, opts.Device.Address.Hex(), opts.DeviceClass)
	return &BinarySensor{baseEntity: newBaseEntity(opts, PlatformBinarySensor, uid)}
}

// Platform implements Entity.
func (s *BinarySensor) Platform() Platform { return PlatformBinarySensor }

// IsOn returns the last reported state; ok is false until the first update.
func (s *BinarySensor) IsOn() (on, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.on == nil {
		return false, false
	}
	return *s.on, true
}

// ValueChanged implements Entity.
func (s *BinarySensor) ValueChanged(t Telegram) {
	fields, ok := s.decode(t)
	if !ok {
		return
	}

	r := InterpretBinary(s.eep, fields)
	if r.Kind != StateUpdate {
		return
	}

	on := r.On
	s.mu.Lock()
	s.on = &on
	s.updated = telegramTime(t)
	s.mu.Unlock()

	if s.publisher != nil {
		s.publisher.PublishState(s.entityID, on)
	}
}

// Snapshot implements Entity.
func (s *BinarySensor) Snapshot() EntitySnapshot {
	snap := EntitySnapshot{
		EntityID:    s.entityID,
		UniqueID:    s.uniqueID,
		Platform:    PlatformBinarySensor,
		Name:        s.dev.Name,
		Address:     s.dev.Address,
		EEP:         s.eep,
		DeviceClass: s.deviceClass,
		Device:      s.DeviceInfo(),
	}
	s.mu.RLock()
	if s.on != nil {
		on := *s.on
		updated := s.updated
		snap.On = &on
		snap.LastUpdated = &updated
	}
	s.mu.RUnlock()
	return snap
}

// ButtonEvent exposes one rocker channel of a wall switch as an event entity.
type ButtonEvent struct {
	baseEntity
	channel Channel

	mu        sync.RWMutex
	lastEvent time.Time
}

// Ensure ButtonEvent implements Entity.
var _ Entity = (*ButtonEvent)(nil)

// buttonDeviceClass is the device class of every rocker event entity.
const buttonDeviceClass = "button"

// NewButtonEvent creates an event entity bound to one rocker channel.
// The unique ID is "eltako_<hex address>_button_<channel>".
func NewButtonEvent(opts EntityOptions, channel Channel) *ButtonEvent {
	opts.DeviceClass = buttonDeviceClass
	uid := fmt.Sprintf("%s_%s_%s_%s", uniqueIDPrefix, opts.Device.Address.Hex(), buttonDeviceClass, channel)
	return &ButtonEvent{
		baseEntity: newBaseEntity(opts, PlatformEvent, uid),
		channel:    channel,
	}
}

// Platform implements Entity.
func (b *ButtonEvent) Platform() Platform { return PlatformEvent }

// Channel returns the rocker channel this entity listens to.
func (b *ButtonEvent) Channel() Channel { return b.channel }

// EventTypes lists the events this entity can fire.
func (b *ButtonEvent) EventTypes() []string {
	return []string{string(ButtonPressed)}
}

// ValueChanged implements Entity.
func (b *ButtonEvent) ValueChanged(t Telegram) {
	fields, ok := b.decode(t)
	if !ok {
		return
	}

	r := InterpretButton(b.eep, fields, b.channel)
	if r.Kind != EventFired {
		return
	}

	b.mu.Lock()
	b.lastEvent = telegramTime(t)
	b.mu.Unlock()

	if b.publisher != nil {
		b.publisher.FireEvent(b.entityID, r.Event)
	}
}

// Snapshot implements Entity.
func (b *ButtonEvent) Snapshot() EntitySnapshot {
	snap := EntitySnapshot{
		EntityID:    b.entityID,
		UniqueID:    b.uniqueID,
		Platform:    PlatformEvent,
		Name:        b.dev.Name,
		Address:     b.dev.Address,
		EEP:         b.eep,
		DeviceClass: b.deviceClass,
		Channel:     b.channel,
		EventTypes:  b.EventTypes(),
		Device:      b.DeviceInfo(),
	}
	b.mu.RLock()
	if !b.lastEvent.IsZero() {
		last := b.lastEvent
		snap.LastEvent = &last
	}
	b.mu.RUnlock()
	return snap
}

func telegramTime(t Telegram) time.Time {
	if t.Timestamp.IsZero() {
		return time.Now()
	}
	return t.Timestamp
}
