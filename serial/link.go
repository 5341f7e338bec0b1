package serial

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	goserial "github.com/tarm/serial"
)

// Baud is the fixed rate the board's firmware runs its UART at.
const Baud = 115200

var (
	// ErrUnavailable means no port could be opened, or discovery found no
	// responding device.
	ErrUnavailable = errors.New("link unavailable")
	// ErrTimeout means a complete response frame did not arrive in time.
	ErrTimeout = errors.New("link timeout")
	// ErrIO means a stream-level failure on the underlying port.
	ErrIO = errors.New("link i/o error")
)

// Link is a byte-oriented request/response channel over one serial port.
// At most one command is outstanding per link; Send serializes callers.
type Link struct {
	mu        sync.Mutex // serializes Send
	port      *goserial.Port
	name      string
	closed    atomic.Bool
	closeOnce sync.Once
}

// OpenLink opens the serial link. With an empty portHint it auto-discovers a
// candidate port by probing for the identification response.
func OpenLink(portHint string, baud int) (*Link, error) {
	if baud <= 0 {
		baud = Baud
	}
	name := portHint
	if name == "" {
		found, _ := AutoDetectPort(baud)
		if found == "" {
			return nil, fmt.Errorf("%w: no port answered the identification probe", ErrUnavailable)
		}
		name = found
	}
	port, err := openPort(name, baud)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnavailable, name, err)
	}
	return &Link{port: port, name: name}, nil
}

func openPort(name string, baud int) (*goserial.Port, error) {
	cfg := &goserial.Config{
		Name:        name,
		Baud:        baud,
		Parity:      goserial.ParityNone,
		Size:        8,
		StopBits:    goserial.Stop1,
		ReadTimeout: time.Millisecond * 300,
	}
	return goserial.OpenPort(cfg)
}

// PortName returns the device name of the underlying port.
func (l *Link) PortName() string { return l.name }

// Send writes a framed command and blocks until a complete response frame
// arrives or timeoutMS elapses. Timeouts are surfaced, never retried here;
// the controller decides whether to retry a whole scan attempt.
func (l *Link) Send(payload []byte, timeoutMS int) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed.Load() {
		return "", fmt.Errorf("%w: link closed", ErrIO)
	}
	cmd := BuildCommand(payload)
	if _, err := l.port.Write(cmd); err != nil {
		return "", fmt.Errorf("%w: write: %v", ErrIO, err)
	}
	raw, err := readUntil(l.port, timeoutMS)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return "", err
		}
		return "", fmt.Errorf("%w: read: %v", ErrIO, err)
	}
	data, err := parseResponse(raw, cmd)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrIO, err)
	}
	return data, nil
}

// Close releases the underlying port. It is idempotent and does not wait for
// an in-flight Send: closing the port makes the pending read fail with ErrIO,
// which is the only way to abandon an in-flight measurement.
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		err = l.port.Close()
	})
	return err
}
