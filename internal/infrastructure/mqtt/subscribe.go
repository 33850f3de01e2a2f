package mqtt

// Subscribe asks the broker for messages on topic.
//
// Messages are delivered to Handlers.OnMessage. The call does not wait for
// the broker's acknowledgement; a rejected subscription is reported through
// Handlers.OnError wrapping ErrSubscribeFailed.
//
// Subscriptions are not restored by this type after a reconnect; the owner
// resubscribes from its OnConnect handler.
func (c *Conn) Subscribe(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if c.client == nil || c.ended.Load() {
		return ErrNotConnected
	}

	// A nil callback routes messages to the default publish handler.
	token := c.client.Subscribe(topic, qos, nil)
	c.watch(token, topic)

	return nil
}
