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

package commands

import (
	"bytes"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/davidroman0O/robotest"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linePort serves its data once and then idles
type linePort struct {
	mu     sync.Mutex
	data   *bytes.Reader
	closed bool
}

func newLinePort(lines ...string) *linePort {
	return &linePort{data: bytes.NewReader([]byte(strings.Join(lines, "\r\n") + "\r\n"))}
}

func (p *linePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data.Len() == 0 {
		return 0, nil
	}
	return p.data.Read(b)
}

func (p *linePort) SetReadTimeout(time.Duration) error { return nil }

func (p *linePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// withDevices swaps discovery and the serial opener for the test
func withDevices(t *testing.T, devices map[string][]string, port robotest.SerialPort) {
	t.Helper()

	prevGlob, prevOpen := globber, openSerial
	t.Cleanup(func() {
		globber, openSerial = prevGlob, prevOpen
	})

	globber = func(pattern string) ([]string, error) {
		return append([]string(nil), devices[pattern]...), nil
	}
	openSerial = func(string, int) (robotest.SerialPort, error) {
		if port == nil {
			return nil, errors.New("no such device")
		}
		return port, nil
	}
}

func firmwareServer(t *testing.T, controlBody string, healthStatus int) (string, string) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Write([]byte("<html>Robot Controller</html>"))
		case "/control":
			w.Write([]byte(controlBody))
		case "/health":
			w.WriteHeader(healthStatus)
		case "/drive":
			w.Write([]byte("OK"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	return host, port
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

var modemOnly = map[string][]string{
	robotest.ModemPattern:         {"/dev/cu.usbmodem2101", "/dev/cu.usbmodem1101"},
	robotest.SerialAdapterPattern: {"/dev/cu.usbserial-0001"},
}

func TestRunHealthFailureStillPasses(t *testing.T) {
	host, httpPort := firmwareServer(t, "OK", http.StatusInternalServerError)
	port := newLinePort("AP mode started", "READY ip="+host)
	withDevices(t, modemOnly, port)

	out, _, err := execute(t, "run", "--http-port", httpPort)
	require.NoError(t, err)

	assert.Contains(t, out, "Opening serial port: /dev/cu.usbmodem1101")
	assert.Contains(t, out, "SERIAL: AP mode started")
	assert.Contains(t, out, "✓ Root endpoint OK")
	assert.Contains(t, out, "✓ Control endpoint OK")
	assert.Contains(t, out, "Health endpoint skipped or failed")
	assert.Contains(t, out, "ALL HTTP TESTS PASSED")
	assert.True(t, port.closed)
}

func TestRunControlWithoutOKFails(t *testing.T) {
	host, httpPort := firmwareServer(t, "ERR", http.StatusOK)
	withDevices(t, modemOnly, newLinePort("READY ip="+host))

	out, _, err := execute(t, "run", "--http-port", httpPort)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFailed))

	assert.Contains(t, out, "HTTP TEST FAILED")
	assert.Contains(t, out, "Error: Control endpoint did not return OK")
	assert.NotContains(t, out, "Testing GET /health")
}

func TestRunNoDevice(t *testing.T) {
	withDevices(t, nil, nil)

	out, _, err := execute(t, "run")
	assert.ErrorIs(t, err, ErrFailed)
	assert.Contains(t, out, "no Arduino serial port found")
}

func TestRunNotReady(t *testing.T) {
	withDevices(t, modemOnly, newLinePort("still booting"))

	out, _, err := execute(t, "run", "--ready-timeout", "50ms")
	assert.ErrorIs(t, err, ErrFailed)
	assert.Contains(t, out, "device not ready")
}

func TestSmokeWithSummary(t *testing.T) {
	host, httpPort := firmwareServer(t, "OK", http.StatusOK)
	withDevices(t, nil, nil)

	out, _, err := execute(t, "smoke", "--ip", host, "--http-port", httpPort, "--extended", "--summary")
	require.NoError(t, err)

	assert.NotContains(t, out, "Opening serial port")
	assert.Contains(t, out, "✓ Drive endpoint OK")
	assert.Contains(t, out, "Smoke Test Summary")
	assert.Contains(t, out, "ALL HTTP TESTS PASSED")
}

func TestSmokeRequiresIP(t *testing.T) {
	_, _, err := execute(t, "smoke")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ip")
}

func TestInvalidFlags(t *testing.T) {
	_, _, err := execute(t, "smoke", "--ip", "10.0.0.2", "--baud", "0")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrFailed))

	_, _, err = execute(t, "smoke", "--ip", "10.0.0.2", "--http-port", "70000")
	require.Error(t, err)
}

func TestWaitPrintsAddressOnly(t *testing.T) {
	withDevices(t, modemOnly, newLinePort("Starting AP: RobotAP", "READY ip=10.0.0.2"))

	out, errOut, err := execute(t, "wait")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2\n", out)
	assert.Contains(t, errOut, "SERIAL: Starting AP: RobotAP")
	assert.Contains(t, errOut, "Detected Arduino IP: 10.0.0.2")
}

func TestWaitOpenFailure(t *testing.T) {
	withDevices(t, modemOnly, nil)

	_, errOut, err := execute(t, "wait")
	assert.ErrorIs(t, err, ErrFailed)
	assert.Contains(t, errOut, "BOARD NOT READY")
	assert.Contains(t, errOut, "no such device")
}

func TestPortSelects(t *testing.T) {
	withDevices(t, modemOnly, nil)

	out, _, err := execute(t, "port")
	require.NoError(t, err)
	assert.Equal(t, "Auto-selected upload/test port: /dev/cu.usbmodem1101\n", out)
}

func TestPortExport(t *testing.T) {
	withDevices(t, map[string][]string{robotest.SerialAdapterPattern: {"/dev/cu.usbserial-0001"}}, nil)

	out, errOut, err := execute(t, "port", "--export")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Auto-selected upload/test port: /dev/cu.usbserial-0001")
	assert.Equal(t, strings.Join([]string{
		`export MONITOR_PORT="/dev/cu.usbserial-0001"`,
		`export TEST_PORT="/dev/cu.usbserial-0001"`,
		`export UPLOAD_PORT="/dev/cu.usbserial-0001"`,
	}, "\n")+"\n", out)
}

func TestPortEnvFile(t *testing.T) {
	withDevices(t, modemOnly, nil)
	path := filepath.Join(t.TempDir(), "ports.env")

	_, _, err := execute(t, "port", "--env-file", path)
	require.NoError(t, err)

	env, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		robotest.UploadPortKey:  "/dev/cu.usbmodem1101",
		robotest.MonitorPortKey: "/dev/cu.usbmodem1101",
		robotest.TestPortKey:    "/dev/cu.usbmodem1101",
	}, env)
}

func TestPortNoneFound(t *testing.T) {
	withDevices(t, nil, nil)

	out, _, err := execute(t, "port")
	require.NoError(t, err)
	assert.Contains(t, out, "ERROR: No Arduino serial port found")

	_, _, err = execute(t, "port", "--strict")
	assert.ErrorIs(t, err, ErrFailed)
}

func TestPortEnvFileKeepsOtherKeys(t *testing.T) {
	withDevices(t, modemOnly, nil)
	path := filepath.Join(t.TempDir(), "build.env")
	require.NoError(t, os.WriteFile(path, []byte("BOARD=uno_r4_wifi\nUPLOAD_SPEED=921600\nUPLOAD_PORT=/dev/stale\n"), 0o600))

	out, _, err := execute(t, "port", "--env-file", path, "--export")
	require.NoError(t, err)
	assert.NotContains(t, out, "BOARD", "export carries only the port slots")

	env, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"BOARD":                 "uno_r4_wifi",
		"UPLOAD_SPEED":          "921600",
		robotest.UploadPortKey:  "/dev/cu.usbmodem1101",
		robotest.MonitorPortKey: "/dev/cu.usbmodem1101",
		robotest.TestPortKey:    "/dev/cu.usbmodem1101",
	}, env)
}
