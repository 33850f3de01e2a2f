// Package influxdb records frame transport telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. A connected *Client
// implements transport.Metrics and writes one point per call:
//
//	frame_publications,device=<id> bytes=<n>i
//	frame_messages,device=<id> bytes=<n>i
//	transport_events,device=<id>,event=<OPEN|READY|...> count=1i
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	tr, err := transport.Open("mqtt", opts, transport.WithMetrics(client))
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are batched according to
// batch_size and flush_interval and never block the caller; failures are
// reported through SetOnError.
package influxdb
