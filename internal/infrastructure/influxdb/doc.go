// Package influxdb records EnOcean history in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health checks. The bridge
// sees it only through its HistoryWriter interface, so history stays
// optional: with influxdb.enabled false the service never connects.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WritePointWithTime("enocean_event",
//	    map[string]string{"entity_id": "event.lounge_switch_a0"},
//	    map[string]any{"fired": 1},
//	    time.Now())
//
// Writes are batched according to batch_size and flush_interval.
package influxdb
