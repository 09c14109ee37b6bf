package enocean

// SetupOptions holds what the platform setup functions need.
type SetupOptions struct {
	// Config is the loaded bridge configuration snapshot.
	Config *Config

	// Decoder decodes telegrams. Default: ProfileDecoder.
	Decoder Decoder

	// Publisher receives entity output.
	Publisher Publisher

	// Logger is optional structured logger.
	Logger Logger
}

// Setup creates the entities of both platforms, binary sensors first.
func Setup(opts SetupOptions) []Entity {
	entities := SetupBinarySensors(opts)
	return append(entities, SetupEvents(opts)...)
}

// SetupBinarySensors creates one BinarySensor per binary_sensor entry.
//
// Entries with a malformed address, an unknown EEP, or an EEP that is not a
// binary sensor profile are skipped with a warning; the rest are still created.
func SetupBinarySensors(opts SetupOptions) []Entity {
	if opts.Config == nil {
		return nil
	}

	var entities []Entity
	for _, dc := range opts.Config.BinarySensors {
		eo, ok := resolveDevice(opts, dc, PlatformBinarySensor)
		if !ok {
			continue
		}
		if dc.DeviceClass != "" {
			eo.DeviceClass = dc.DeviceClass
		}
		entities = append(entities, NewBinarySensor(eo))
	}
	return entities
}

// SetupEvents creates four ButtonEvent entities (A1, A0, B1, B0) per event entry.
//
// Entries are skipped with a warning under the same rules as SetupBinarySensors.
func SetupEvents(opts SetupOptions) []Entity {
	if opts.Config == nil {
		return nil
	}

	var entities []Entity
	for _, dc := range opts.Config.Events {
		eo, ok := resolveDevice(opts, dc, PlatformEvent)
		if !ok {
			continue
		}
		for _, ch := range Channels {
			entities = append(entities, NewButtonEvent(eo, ch))
		}
	}
	return entities
}

// resolveDevice parses the address and profile of one config entry.
func resolveDevice(opts SetupOptions, dc DeviceConfig, platform Platform) (EntityOptions, bool) {
	addr, err := ParseAddress(dc.ID)
	if err != nil {
		warn(opts.Logger, "Invalid device address, skipping device",
			"platform", string(platform), "id", dc.ID, "name", dc.Name, "error", err)
		return EntityOptions{}, false
	}

	eep, err := ParseEEP(dc.EEP)
	if err != nil {
		warn(opts.Logger, "Unsupported EEP, skipping device",
			"platform", string(platform), "id", dc.ID, "name", dc.Name, "eep", dc.EEP)
		return EntityOptions{}, false
	}

	if eep.Platform() != platform {
		warn(opts.Logger, "EEP not supported on this platform, skipping device",
			"platform", string(platform), "id", dc.ID, "name", dc.Name, "eep", eep.String())
		return EntityOptions{}, false
	}

	return EntityOptions{
		Device:    DeviceIdentity{Address: addr, Name: dc.Name},
		EEP:       eep,
		GatewayID: opts.Config.Gateway.ID,
		Decoder:   opts.Decoder,
		Publisher: opts.Publisher,
		Logger:    opts.Logger,
	}, true
}

func warn(logger Logger, msg string, keysAndValues ...any) {
	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}
