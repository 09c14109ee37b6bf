// Package enocean implements the EnOcean (Eltako) protocol bridge for Gray Logic.
//
// This package receives ESP2 radio telegrams from an Eltako gateway (FAM14,
// FGW14-USB, FAM-USB) and exposes the configured devices as binary sensors and
// button event entities on the MQTT bus.
//
// # Architecture
//
//	┌─────────────────┐          ┌──────────────────┐  ESP2   ┌──────────┐
//	│   Gray Logic    │   MQTT   │  EnOcean Bridge  │◄────────│ Gateway  │◄── radio
//	│      Core       │◄─────────│   (this pkg)     │ serial/ └──────────┘
//	└─────────────────┘          └──────────────────┘  tcp/ws
//
// A received telegram flows through:
//
//	GatewayClient → repeat filter → SightingRecorder → Dispatcher → Entity
//	    → ProfileDecoder → InterpretBinary / InterpretButton → Publisher
//
// # Supported profiles
//
//   - F6-02-01, F6-02-02: rocker switches, four event entities per device (A1, A0, B1, B0)
//   - F6-10-00: window handle, binary sensor (window)
//   - D5-00-01: contact, binary sensor (door)
//   - A5-08-01: occupancy, binary sensor (motion)
//
// Devices with an unknown EEP, an unparseable address, or an EEP belonging to
// the other platform are logged and skipped; the rest of the configuration
// still loads.
//
// # Thread Safety
//
// All exported types are safe for concurrent use. Telegram delivery is
// sequential: one telegram is fully dispatched before the next.
package enocean
