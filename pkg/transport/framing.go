package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/torqbus-protocol/torqbus-go/pkg/log"
)

// Framing constants.
const (
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4

	// DefaultMaxFrameSize is the default maximum frame size (16 KB).
	// Bridge frames are small; anything larger is a framing error.
	DefaultMaxFrameSize = 16384

	// MaxLogFrameDataSize is the maximum frame data size to include in log
	// events. Larger frames are truncated in events.
	MaxLogFrameDataSize = 1024
)

// Framing errors.
var (
	// ErrFrameTooLarge indicates the frame exceeds the maximum size.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrFrameEmpty indicates an empty frame.
	ErrFrameEmpty = errors.New("frame is empty")

	// ErrFrameTruncated indicates the stream ended mid-frame.
	ErrFrameTruncated = errors.New("frame truncated")
)

// FrameWriter writes length-prefixed frames to an underlying writer.
type FrameWriter struct {
	w            io.Writer
	maxFrameSize uint32
	mu           sync.Mutex

	// Logging support (optional)
	logger    log.Logger
	sessionID string
}

// NewFrameWriter creates a new frame writer.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{
		w:            w,
		maxFrameSize: DefaultMaxFrameSize,
	}
}

// SetLogger configures logging for this writer. Pass nil to disable logging.
func (fw *FrameWriter) SetLogger(logger log.Logger, sessionID string) {
	fw.logger = logger
	fw.sessionID = sessionID
}

// WriteFrame writes a length-prefixed frame.
// Thread-safe: can be called from multiple goroutines.
func (fw *FrameWriter) WriteFrame(data []byte) error {
	if len(data) == 0 {
		return ErrFrameEmpty
	}
	if uint32(len(data)) > fw.maxFrameSize {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(data), fw.maxFrameSize)
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	var lengthBuf [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(data)))

	if _, err := fw.w.Write(lengthBuf[:]); err != nil {
		return fmt.Errorf("failed to write length prefix: %w", err)
	}
	if _, err := fw.w.Write(data); err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}

	if fw.logger != nil {
		fw.logger.Log(makeFrameEvent(fw.sessionID, data, log.DirectionOut))
	}

	return nil
}

// FrameReader reads length-prefixed frames from an underlying reader.
type FrameReader struct {
	r            io.Reader
	maxFrameSize uint32

	// In-progress frame state. A read that fails mid-frame (a deadline
	// expiring between the prefix and the payload) resumes at the byte
	// where it stopped on the next call instead of desyncing the stream.
	lengthBuf [LengthPrefixSize]byte
	lengthN   int
	payload   []byte
	payloadN  int

	// Logging support (optional)
	logger    log.Logger
	sessionID string
}

// NewFrameReader creates a new frame reader.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{
		r:            r,
		maxFrameSize: DefaultMaxFrameSize,
	}
}

// SetLogger configures logging for this reader. Pass nil to disable logging.
func (fr *FrameReader) SetLogger(logger log.Logger, sessionID string) {
	fr.logger = logger
	fr.sessionID = sessionID
}

// ReadFrame reads a length-prefixed frame.
// Returns the frame payload (without the length prefix). On a recoverable
// read error (a timeout), partial progress is retained and the next call
// picks up where this one stopped.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	for fr.payload == nil {
		n, err := fr.r.Read(fr.lengthBuf[fr.lengthN:])
		fr.lengthN += n
		if fr.lengthN == LengthPrefixSize {
			fr.lengthN = 0

			length := binary.BigEndian.Uint32(fr.lengthBuf[:])
			if length == 0 {
				return nil, ErrFrameEmpty
			}
			if length > fr.maxFrameSize {
				return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, fr.maxFrameSize)
			}
			fr.payload = make([]byte, length)
			fr.payloadN = 0
			break
		}
		if err != nil {
			if err == io.EOF {
				if fr.lengthN > 0 {
					return nil, ErrFrameTruncated
				}
				return nil, err
			}
			return nil, fmt.Errorf("failed to read length prefix: %w", err)
		}
	}

	for fr.payloadN < len(fr.payload) {
		n, err := fr.r.Read(fr.payload[fr.payloadN:])
		fr.payloadN += n
		if fr.payloadN == len(fr.payload) {
			break
		}
		if err != nil {
			if err == io.EOF {
				return nil, ErrFrameTruncated
			}
			return nil, fmt.Errorf("failed to read payload: %w", err)
		}
	}

	payload := fr.payload
	fr.payload = nil
	fr.payloadN = 0

	if fr.logger != nil {
		fr.logger.Log(makeFrameEvent(fr.sessionID, payload, log.DirectionIn))
	}

	return payload, nil
}

// makeFrameEvent creates a log event for a frame.
func makeFrameEvent(sessionID string, data []byte, direction log.Direction) log.Event {
	frameSize := LengthPrefixSize + len(data)
	frameData := data
	truncated := false

	if len(data) > MaxLogFrameDataSize {
		frameData = data[:MaxLogFrameDataSize]
		truncated = true
	}

	return log.Event{
		Timestamp: time.Now(),
		SessionID: sessionID,
		Direction: direction,
		Layer:     log.LayerTransport,
		Category:  log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:      frameSize,
			Data:      frameData,
			Truncated: truncated,
		},
	}
}
