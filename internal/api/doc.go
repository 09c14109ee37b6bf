// Package api implements the read-only HTTP API and WebSocket relay for the
// EnOcean service.
//
// Endpoints (all under /api/v1):
//   - GET /health: bridge health message plus database/MQTT/InfluxDB checks
//   - GET /entities: snapshots of every entity, ?platform= filter
//   - GET /entities/{entityID}: one entity, 404 when unknown
//   - GET /sightings: senders heard on the bus, ?unknown=true and ?limit=
//   - GET /ws: live entity.state and entity.event messages relayed from MQTT
//
// Every request gets an X-Request-ID (client value or a fresh UUID), a
// structured log line and panic recovery.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
