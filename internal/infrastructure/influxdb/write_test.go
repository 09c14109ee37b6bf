package influxdb

import (
	"testing"

	"github.com/nerrad567/gray-logic-enocean/internal/infrastructure/config"
)

func TestWithOrg(t *testing.T) {
	tags := map[string]string{"entity_id": "binary_sensor.door"}

	got := withOrg(tags, "graylogic")
	if got["org"] != "graylogic" || got["entity_id"] != "binary_sensor.door" {
		t.Errorf("withOrg() = %v", got)
	}
	if _, ok := tags["org"]; ok {
		t.Error("withOrg() modified the caller's map")
	}

	got = withOrg(map[string]string{"org": "custom"}, "graylogic")
	if got["org"] != "custom" {
		t.Errorf("existing org overwritten: %v", got)
	}

	got = withOrg(nil, "")
	if len(got) != 0 {
		t.Errorf("withOrg(nil, \"\") = %v, want empty", got)
	}
}

func TestClientOptions(t *testing.T) {
	opts := clientOptions(config.InfluxDBConfig{})
	if opts.BatchSize() != defaultBatchSize {
		t.Errorf("BatchSize() = %d, want %d", opts.BatchSize(), defaultBatchSize)
	}
	if opts.FlushInterval() != 10000 {
		t.Errorf("FlushInterval() = %d ms, want 10000", opts.FlushInterval())
	}

	opts = clientOptions(config.InfluxDBConfig{BatchSize: 20, FlushInterval: 2})
	if opts.BatchSize() != 20 || opts.FlushInterval() != 2000 {
		t.Errorf("options = batch %d flush %d", opts.BatchSize(), opts.FlushInterval())
	}
}
