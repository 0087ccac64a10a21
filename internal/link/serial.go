package link

import (
	"io"
	"time"

	"github.com/tarm/serial"
)

// Port is an open serial device.
type Port interface {
	io.Writer
	io.Closer
}

// OpenFunc opens a serial device. readTimeout of zero means blocking reads.
type OpenFunc func(device string, baud int, readTimeout time.Duration) (Port, error)

// OpenSerial opens a real serial device (8N1, no flow control).
func OpenSerial(device string, baud int, readTimeout time.Duration) (Port, error) {
	p, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: readTimeout,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
