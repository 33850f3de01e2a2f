package mqtt

import "fmt"

// Publish sends payload to topic without waiting for the broker.
//
// Delivery is best-effort: a failure after the message has been handed to
// paho is logged, never returned. Only input validation and a closed
// connection produce an error.
//
// QoS Levels:
//   - 0: At most once (fire and forget)
//   - 1: At least once (guaranteed delivery, may duplicate)
//   - 2: Exactly once (guaranteed, no duplicates, higher overhead)
func (c *Conn) Publish(topic string, payload []byte, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if c.client == nil || c.ended.Load() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, false, payload)
	go func() {
		if !token.WaitTimeout(defaultPublishTimeout) {
			return
		}
		if err := token.Error(); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT publish failed",
					"topic", topic,
					"bytes", len(payload),
					"error", fmt.Errorf("%w: %w", ErrPublishFailed, err),
				)
			}
		}
	}()

	return nil
}
