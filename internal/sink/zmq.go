package sink

import (
	"sync"
	"syscall"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"

	"flirone-go/internal/types"
)

// Publisher pushes reassembled frames to remote consumers over a ZeroMQ
// PUSH socket, one CBOR message per frame. Sends never block: when no
// peer is draining, the frame is dropped rather than stalling ingest.
type Publisher struct {
	mu     sync.Mutex
	socket *zmq4.Socket
}

// NewPublisher binds endpoint, e.g. "tcp://*:31001".
func NewPublisher(endpoint string) (*Publisher, error) {
	socket, err := zmq4.NewSocket(zmq4.PUSH)
	if err != nil {
		return nil, err
	}
	if err := socket.Bind(endpoint); err != nil {
		_ = socket.Close()
		return nil, err
	}
	// Bound queue: shed frames instead of buffering a slow consumer.
	if err := socket.SetSndhwm(8); err != nil {
		_ = socket.Close()
		return nil, err
	}
	return &Publisher{socket: socket}, nil
}

// Publish encodes the frame as CBOR and sends it without blocking.
func (p *Publisher) Publish(f types.Frame) error {
	payload, err := cbor.Marshal(f)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err = p.socket.SendBytes(payload, zmq4.DONTWAIT)
	if err != nil && zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
		// No peer ready; drop quietly.
		return nil
	}
	return err
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.socket.Close()
}
