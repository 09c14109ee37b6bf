package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePointWithTime writes one point with an explicit timestamp.
//
// The EnOcean bridge records history through this method:
//   - enocean_state: entity on/off transitions
//   - enocean_event: button presses
//   - enocean_occupancy: PIR supply voltage, illumination and temperature
//   - enocean_gateway: frame counters from each health report
//
// The write is non-blocking; points are batched and errors arrive on the
// SetOnError callback. Writes after Close are dropped.
//
// Example:
//
//	client.WritePointWithTime("enocean_state",
//	    map[string]string{"entity_id": "binary_sensor.eltako_05000001_door"},
//	    map[string]any{"on": 1},
//	    time.Now())
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}

	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	point := write.NewPoint(measurement, withOrg(tags, c.cfg.Org), fields, timestamp)
	c.writeAPI.WritePoint(point)
}

// withOrg returns tags with the org added unless already present.
// The caller's map is not modified.
func withOrg(tags map[string]string, org string) map[string]string {
	out := make(map[string]string, len(tags)+1)
	for k, v := range tags {
		out[k] = v
	}
	if _, ok := out["org"]; !ok && org != "" {
		out["org"] = org
	}
	return out
}
