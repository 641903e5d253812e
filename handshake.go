// Copyright 2023 Turing Machines
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package robotest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

var (
	// ErrNoDevice is returned when no serial device matches the patterns
	ErrNoDevice = errors.New("no Arduino serial port found")
	// ErrNotReady is returned when the board never announces its address
	ErrNotReady = errors.New("device not ready")
)

var readyPattern = regexp.MustCompile(`READY ip=(\d+\.\d+\.\d+\.\d+)`)

// maxLineLength bounds how much unterminated output is buffered
const maxLineLength = 4096

// SerialPort is the subset of a serial connection the handshake needs
type SerialPort interface {
	Read(p []byte) (n int, err error)
	SetReadTimeout(t time.Duration) error
	Close() error
}

// Opener opens the serial device at path
type Opener func(path string, baudRate int) (SerialPort, error)

// OpenSerial opens a real serial device with 8N1 framing
func OpenSerial(path string, baudRate int) (SerialPort, error) {
	port, err := serial.Open(path, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, err
	}
	return port, nil
}

// ParseReady extracts the address from a boot announcement line
func ParseReady(line string) (string, bool) {
	match := readyPattern.FindStringSubmatch(line)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// Handshake waits for the board to announce its IP over serial
type Handshake struct {
	BaudRate     int
	ReadTimeout  time.Duration
	ReadyTimeout time.Duration

	open   Opener
	out    io.Writer
	logger *zap.Logger
	now    func() time.Time
}

// HandshakeOption is a function that configures a Handshake
type HandshakeOption func(*Handshake)

// WithBaudRate sets the serial line speed
func WithBaudRate(baud int) HandshakeOption {
	return func(h *Handshake) {
		h.BaudRate = baud
	}
}

// WithReadTimeout sets the per-read timeout
func WithReadTimeout(timeout time.Duration) HandshakeOption {
	return func(h *Handshake) {
		h.ReadTimeout = timeout
	}
}

// WithReadyTimeout sets the total time allowed for the READY line
func WithReadyTimeout(timeout time.Duration) HandshakeOption {
	return func(h *Handshake) {
		h.ReadyTimeout = timeout
	}
}

// WithOpener replaces the serial opener
func WithOpener(open Opener) HandshakeOption {
	return func(h *Handshake) {
		h.open = open
	}
}

// WithOutput sets where serial lines are echoed
func WithOutput(out io.Writer) HandshakeOption {
	return func(h *Handshake) {
		h.out = out
	}
}

// WithLogger sets the diagnostic logger
func WithLogger(logger *zap.Logger) HandshakeOption {
	return func(h *Handshake) {
		h.logger = logger
	}
}

// WithClock replaces time.Now for the ready budget
func WithClock(now func() time.Time) HandshakeOption {
	return func(h *Handshake) {
		h.now = now
	}
}

// NewHandshake creates a Handshake with the provided options
func NewHandshake(options ...HandshakeOption) *Handshake {
	h := &Handshake{
		BaudRate:     DefaultBaudRate,
		ReadTimeout:  DefaultReadTimeout,
		ReadyTimeout: DefaultReadyTimeout,
		open:         OpenSerial,
		out:          os.Stdout,
		logger:       zap.NewNop(),
		now:          time.Now,
	}

	for _, option := range options {
		option(h)
	}

	return h
}

// Wait opens path and polls it line by line until a READY line arrives or
// the ready budget runs out. The port is closed before Wait returns.
func (h *Handshake) Wait(ctx context.Context, path string) (string, error) {
	fmt.Fprintf(h.out, "Opening serial port: %s\n", path)

	port, err := h.open(path, h.BaudRate)
	if err != nil {
		return "", fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	defer func() {
		if err := port.Close(); err != nil {
			h.logger.Debug("closing serial port", zap.String("port", path), zap.Error(err))
		}
	}()

	if err := port.SetReadTimeout(h.ReadTimeout); err != nil {
		return "", fmt.Errorf("failed to set read timeout: %w", err)
	}

	h.logger.Debug("waiting for READY line",
		zap.String("port", path),
		zap.Int("baud", h.BaudRate),
		zap.Duration("budget", h.ReadyTimeout),
	)

	reader := newLineReader(port)
	start := h.now()
	for h.now().Sub(start) < h.ReadyTimeout {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		line, err := reader.ReadLine()
		if err != nil {
			return "", fmt.Errorf("failed to read from %s: %w", path, err)
		}
		if line == "" {
			// An unterminated line that stayed quiet for a whole read
			if reader.Idle() {
				if ip, ok := h.matchPending(reader, start); ok {
					return ip, nil
				}
			}
			continue
		}

		fmt.Fprintln(h.out, "SERIAL:", line)

		if ip, ok := ParseReady(line); ok {
			h.announce(ip, start)
			return ip, nil
		}
	}

	if ip, ok := h.matchPending(reader, start); ok {
		return ip, nil
	}

	return "", fmt.Errorf("%w: did not receive READY ip=... from board within %s", ErrNotReady, h.ReadyTimeout)
}

// matchPending checks the buffered fragment for a READY announcement
func (h *Handshake) matchPending(reader *lineReader, start time.Time) (string, bool) {
	ip, ok := ParseReady(reader.Pending())
	if !ok {
		return "", false
	}
	fmt.Fprintln(h.out, "SERIAL:", reader.Pending())
	h.announce(ip, start)
	return ip, true
}

func (h *Handshake) announce(ip string, start time.Time) {
	fmt.Fprintf(h.out, "Detected Arduino IP: %s\n", ip)
	h.logger.Debug("board ready", zap.String("ip", ip), zap.Duration("elapsed", h.now().Sub(start)))
}

// lineReader splits a timed-out serial stream into lines. An empty string
// means the read timed out without completing a line; partial data stays
// buffered for the next call.
type lineReader struct {
	r     io.Reader
	buf   []byte
	chunk []byte
	idle  bool
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: r, chunk: make([]byte, 256)}
}

func (l *lineReader) ReadLine() (string, error) {
	if line, ok := l.next(); ok {
		return line, nil
	}

	n, err := l.r.Read(l.chunk)
	l.idle = n == 0
	l.buf = append(l.buf, l.chunk[:n]...)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}

	if line, ok := l.next(); ok {
		return line, nil
	}

	if len(l.buf) >= maxLineLength {
		line := cleanLine(l.buf)
		l.buf = l.buf[:0]
		return line, nil
	}

	return "", nil
}

// Idle reports whether the last read returned no data
func (l *lineReader) Idle() bool {
	return l.idle
}

// Pending returns the buffered, not yet terminated line
func (l *lineReader) Pending() string {
	return cleanLine(l.buf)
}

func (l *lineReader) next() (string, bool) {
	i := bytes.IndexByte(l.buf, '\n')
	if i < 0 {
		return "", false
	}
	line := cleanLine(l.buf[:i])
	l.buf = append(l.buf[:0], l.buf[i+1:]...)
	return line, true
}

// cleanLine drops undecodable bytes and surrounding whitespace
func cleanLine(b []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(b), ""))
}
