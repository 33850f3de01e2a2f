package mqtt

import "strings"

// Topic segments per device. A device named "abc" uses abc/PING for frames
// sent to it, abc/PONG for its replies and abc/STATUS for its health.
const (
	TopicSeparator = "/"

	SegmentCommand = "PING"
	SegmentReply   = "PONG"
	SegmentStatus  = "STATUS"
)

// Topics builds the topic names of a single device.
//
//	topics := mqtt.Topics{Device: "abc"}
//	topics.Command() // "abc/PING"
type Topics struct {
	Device string
}

// Command returns the outbound frame topic.
func (t Topics) Command() string {
	return t.Device + TopicSeparator + SegmentCommand
}

// Reply returns the inbound frame topic.
func (t Topics) Reply() string {
	return t.Device + TopicSeparator + SegmentReply
}

// Status returns the inbound device status topic.
func (t Topics) Status() string {
	return t.Device + TopicSeparator + SegmentStatus
}

// LastSegment returns the text after the final separator of a topic,
// or the whole topic when it has none.
func LastSegment(topic string) string {
	return topic[strings.LastIndex(topic, TopicSeparator)+1:]
}
