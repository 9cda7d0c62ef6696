package session

import (
	"errors"
	"sync"
)

// ErrChannelClosed is returned when audio is pushed after the channel was closed.
var ErrChannelClosed = errors.New("audio channel closed")

// StreamWriter is the input side of a recognizer
type StreamWriter interface {
	Write(chunk []byte) error
	CloseStream() error
}

// AudioFrameChannel forwards inbound PCM chunks, in arrival order, straight
// into the recognizer input stream. It does not buffer on its own.
type AudioFrameChannel struct {
	mu     sync.Mutex
	writer StreamWriter
	closed bool
}

// NewAudioFrameChannel creates a channel writing to writer
func NewAudioFrameChannel(writer StreamWriter) *AudioFrameChannel {
	return &AudioFrameChannel{writer: writer}
}

// Push forwards one chunk synchronously
func (c *AudioFrameChannel) Push(chunk []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrChannelClosed
	}
	return c.writer.Write(chunk)
}

// Close signals end of stream. Only the first call reaches the writer.
func (c *AudioFrameChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.writer.CloseStream()
}

// Closed reports whether Close was called
func (c *AudioFrameChannel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
