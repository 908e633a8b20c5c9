package mqtt

// Publisher pushes serialized datapoints to a broker topic.
type Publisher interface {
	// Publish sends the payload to the given topic, retained so late
	// subscribers receive the latest value immediately.
	Publish(topic string, payload []byte) error

	// Disconnect gracefully closes the broker connection.
	Disconnect()
}
