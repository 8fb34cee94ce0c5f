package env

import (
	"flag"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/suoserial/pkg/suoserial"
)

func TestApplyEnv(t *testing.T) {
	vars := map[string]string{
		"SUOSERIAL_TRANSPORT": "mqtt",
		"SUOSERIAL_NAME":      "bench-1",
		"SUOSERIAL_BAUD":      "921600",
		"SUOSERIAL_DEVICE":    "",
	}
	c := Config{Device: "/dev/ttyS0", Baud: 9600}
	c.applyEnv(func(name string) (string, bool) {
		val, ok := vars[name]
		return val, ok
	})
	require.Equal(t, "mqtt", c.Transport)
	require.Equal(t, "bench-1", c.Name)
	require.Equal(t, 921600, c.Baud)
	require.Equal(t, "/dev/ttyS0", c.Device)
}

func TestResolve(t *testing.T) {
	dir, err := ioutil.TempDir("", "env")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "suoserial.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(`
transport: usb
device: /dev/ttyACM0
image-dir: ${SUOSERIAL_TEST_DIR:-/tmp/images}
chunk-size: 1024
read-timeout: 20ms
strict-update: true
`), 0644))

	c := NewConfig()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"-config", path, "-device", "/dev/ttyX"}))
	require.NoError(t, c.Resolve(fs))

	require.Equal(t, TransportUSB, c.Transport)
	require.Equal(t, "/dev/ttyX", c.Device)
	require.Equal(t, "/tmp/images", c.ImageDir)
	require.Equal(t, 1024, c.ChunkSize)
	require.Equal(t, 20*time.Millisecond, c.ReadTimeout)
	require.True(t, c.StrictUpdateEntry)

	sc := c.SessionConfig()
	require.Equal(t, suoserial.VariantUSB, sc.Variant)
	require.Equal(t, 1024, sc.ChunkSize)
	require.Equal(t, 2048, sc.BufferSize())
	require.True(t, sc.StrictUpdateEntry)
}

func TestResolveMissingFile(t *testing.T) {
	c := NewConfig()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"-config", "/nonexistent/suoserial.yaml"}))
	require.Error(t, c.Resolve(fs))
}

func TestExpandEnv(t *testing.T) {
	os.Setenv("SUOSERIAL_TEST_HOST", "broker")
	defer os.Unsetenv("SUOSERIAL_TEST_HOST")
	testCases := []struct {
		in, out string
	}{
		{"mqtt://${SUOSERIAL_TEST_HOST}:1883", "mqtt://broker:1883"},
		{"${SUOSERIAL_TEST_UNSET:-x}", "x"},
		{"a${SUOSERIAL_TEST_UNSET}b", "ab"},
		{"$HOME stays", "$HOME stays"},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			require.Equal(t, tc.out, ExpandEnv(tc.in))
		})
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name  string
		conf  Config
		valid bool
	}{
		{"uart", Config{Transport: TransportUART, Device: "/dev/ttyS0", ChunkSize: 1}, true},
		{"usb without device", Config{Transport: TransportUSB, ChunkSize: 1}, false},
		{"mqtt", Config{Transport: TransportMQTT, MQTTURL: "mqtt://b", ChunkSize: 1}, true},
		{"mqtt without url", Config{Transport: TransportMQTT, ChunkSize: 1}, false},
		{"ws", Config{Transport: TransportWebSocket, Listen: ":1", ChunkSize: 1}, true},
		{"unknown", Config{Transport: "can", ChunkSize: 1}, false},
		{"chunk", Config{Transport: TransportUART, Device: "/dev/ttyS0"}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.conf.Validate()
			if tc.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestDeviceInfo(t *testing.T) {
	info := DeviceInfo{
		VendorID:     VendorID,
		ProductID:    ProductID,
		Manufacturer: Manufacturer,
		Product:      Product,
		Serial:       "abc",
	}
	require.Equal(t, "2dcf:6002 Dialog Semiconductor DA1469x CDC [abc]", info.String())
	c := Config{}
	require.Equal(t, "abc", c.DeviceName(info))
	c.Name = "dev"
	require.Equal(t, "dev", c.DeviceName(info))
	require.NotEmpty(t, NewDeviceInfo().Serial)
}
