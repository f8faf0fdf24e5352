package space

//go:generate mockgen -source=sink.go -destination=mocks/mock_sink.go -package=mocks

// Sink is the outbound side of one session's connection.
// Both methods are only called from the hub event loop and must not block.
type Sink interface {
	// Deliver queues a frame and reports false when the queue is full.
	Deliver(frame []byte) bool

	// Close tells the connection no more frames will follow.
	Close()
}
