package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the telemetry sink.
const (
	MeasurementPublications = "frame_publications"
	MeasurementMessages     = "frame_messages"
	MeasurementEvents       = "transport_events"
)

// PublicationFlushed records one outbound publication.
//
// Example:
//
//	client.PublicationFlushed("abc", 3)
//	// frame_publications,device=abc bytes=3i
func (c *Client) PublicationFlushed(device string, n int) {
	c.writePoint(publicationPoint(device, n, time.Now()))
}

// FrameReceived records one inbound frame.
func (c *Client) FrameReceived(device string, n int) {
	c.writePoint(messagePoint(device, n, time.Now()))
}

// TransportEvent records one emitted transport event, tagged by its name.
// Summing count over a window gives the event rate.
func (c *Client) TransportEvent(device string, event string) {
	c.writePoint(eventPoint(device, event, time.Now()))
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the transport helpers.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.writePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

func (c *Client) writePoint(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}

func publicationPoint(device string, n int, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementPublications,
		map[string]string{"device": device},
		map[string]interface{}{"bytes": n},
		ts,
	)
}

func messagePoint(device string, n int, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementMessages,
		map[string]string{"device": device},
		map[string]interface{}{"bytes": n},
		ts,
	)
}

func eventPoint(device, event string, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementEvents,
		map[string]string{
			"device": device,
			"event":  event,
		},
		map[string]interface{}{"count": 1},
		ts,
	)
}
