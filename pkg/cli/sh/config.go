package sh

import (
	"flag"
	"os"
	"time"

	"github.com/robotalks/suoserial/pkg/host"
)

// Config provides the options of the host shell.
type Config struct {
	// Target specifies the device to connect, see ParseTarget.
	Target  string
	Timeout time.Duration
}

var defaultConfig = Config{
	Timeout: host.DefaultTimeout,
}

func init() {
	if val := os.Getenv("SUOSERIAL_TARGET"); val != "" {
		defaultConfig.Target = val
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Target, "target", defaultConfig.Target, "Device to connect, e.g. serial:///dev/ttyUSB0, usb:///dev/ttyACM0, mqtt://host:1883/prefix/?device=NAME, ws://host:8086/")
	flag.DurationVar(&defaultConfig.Timeout, "timeout", defaultConfig.Timeout, "Response timeout.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}
