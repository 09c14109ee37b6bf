// Package logging wraps log/slog for the EnOcean service.
//
// Every entry carries "service" and "version". config.yaml picks the level
// (debug, info, warn, error), the format (json or text) and the stream:
//
//	logging:
//	  level: info
//	  format: json
//	  output: stdout
//
// Components derive child loggers with With, for example
// logger.With("component", "gateway"). MQTT and InfluxDB credentials must
// never be passed as log fields.
package logging
