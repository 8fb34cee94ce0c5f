// Package env provides the configuration of the suoserial daemon.
package env

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/robotalks/suoserial/pkg/suoserial"
)

// Transports.
const (
	TransportUART      = "uart"
	TransportUSB       = "usb"
	TransportMQTT      = "mqtt"
	TransportWebSocket = "ws"
)

// Config is the daemon configuration. Values come from defaults, then
// SUOSERIAL_* environment variables, then the config file, then flags.
type Config struct {
	ConfigFile string `yaml:"-"`

	Transport   string        `yaml:"transport"`
	Device      string        `yaml:"device"`
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"read-timeout"`
	MQTTURL     string        `yaml:"mqtt"`
	Name        string        `yaml:"name"`
	Listen      string        `yaml:"listen"`

	ImageDir     string `yaml:"image-dir"`
	ParamFile    string `yaml:"params"`
	MaxImageSize uint64 `yaml:"max-image-size"`

	ChunkSize         int  `yaml:"chunk-size"`
	MaxBuffer         int  `yaml:"max-buffer"`
	StrictHex         bool `yaml:"strict-hex"`
	StrictUpdateEntry bool `yaml:"strict-update"`
}

var defaultConfig = Config{
	Transport:   TransportUART,
	Device:      "/dev/ttyUSB0",
	Baud:        115200,
	ReadTimeout: 10 * time.Millisecond,
	MQTTURL:     "mqtt://localhost:1883/suoserial/",
	Listen:      ":8086",
	ImageDir:    "/var/lib/suoserial",
	ChunkSize:   suoserial.DefaultChunkSize,
	MaxBuffer:   suoserial.DefaultMaxWorkBuffer,
	StrictHex:   true,
}

func init() {
	defaultConfig.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(name string, v *string) {
		if val, ok := lookup(name); ok && val != "" {
			*v = val
		}
	}
	str("SUOSERIAL_CONFIG", &c.ConfigFile)
	str("SUOSERIAL_TRANSPORT", &c.Transport)
	str("SUOSERIAL_DEVICE", &c.Device)
	str("SUOSERIAL_MQTT_URL", &c.MQTTURL)
	str("SUOSERIAL_NAME", &c.Name)
	str("SUOSERIAL_LISTEN", &c.Listen)
	str("SUOSERIAL_IMAGE_DIR", &c.ImageDir)
	str("SUOSERIAL_PARAMS", &c.ParamFile)
	if val, ok := lookup("SUOSERIAL_BAUD"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			c.Baud = n
		}
	}
}

// BindFlags binds the config to flags.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "YAML config file.")
	fs.StringVar(&c.Transport, "transport", c.Transport, "Transport: uart, usb, mqtt or ws.")
	fs.StringVar(&c.Device, "device", c.Device, "Serial device for uart and usb transports.")
	fs.IntVar(&c.Baud, "baud", c.Baud, "Baud rate of the uart transport.")
	fs.DurationVar(&c.ReadTimeout, "read-timeout", c.ReadTimeout, "Poll window of a transport read.")
	fs.StringVar(&c.MQTTURL, "mqtt", c.MQTTURL, "MQTT broker URL, e.g. mqtt://host:port/topic-prefix")
	fs.StringVar(&c.Name, "name", c.Name, "Device name in MQTT topics, defaults to the machine serial.")
	fs.StringVar(&c.Listen, "listen", c.Listen, "Listen address of the ws transport.")
	fs.StringVar(&c.ImageDir, "image-dir", c.ImageDir, "Directory of received images.")
	fs.StringVar(&c.ParamFile, "params", c.ParamFile, "Parameter partition file dumped by readsdtparam.")
	fs.Uint64Var(&c.MaxImageSize, "max-image-size", c.MaxImageSize, "Largest accepted image payload, 0 for no limit.")
	fs.IntVar(&c.ChunkSize, "chunk-size", c.ChunkSize, "Binary bytes per PATCH_DATA line.")
	fs.IntVar(&c.MaxBuffer, "max-buffer", c.MaxBuffer, "Largest work buffer accepted by alloc.")
	fs.BoolVar(&c.StrictHex, "strict-hex", c.StrictHex, "Reject invalid hex digits in requests.")
	fs.BoolVar(&c.StrictUpdateEntry, "strict-update", c.StrictUpdateEntry, "Refuse fwupdate without a suitable buffer.")
}

// SetupFlags sets command line flags.
func SetupFlags() {
	defaultConfig.BindFlags(flag.CommandLine)
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Resolve loads the config file, if any, keeping the values of flags set
// on the command line. fs must have been parsed.
func (c *Config) Resolve(fs *flag.FlagSet) error {
	if c.ConfigFile == "" {
		return c.Validate()
	}
	explicit := make(map[string]string)
	fs.Visit(func(f *flag.Flag) {
		explicit[f.Name] = f.Value.String()
	})
	if err := c.LoadFile(c.ConfigFile); err != nil {
		return err
	}
	for name, val := range explicit {
		if err := fs.Set(name, val); err != nil {
			return fmt.Errorf("flag -%s: %w", name, err)
		}
	}
	return c.Validate()
}

// Validate checks the config.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportUART, TransportUSB:
		if c.Device == "" {
			return fmt.Errorf("transport %s requires a device", c.Transport)
		}
	case TransportMQTT:
		if c.MQTTURL == "" {
			return fmt.Errorf("transport mqtt requires a broker URL")
		}
	case TransportWebSocket:
		if c.Listen == "" {
			return fmt.Errorf("transport ws requires a listen address")
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("invalid chunk size %d", c.ChunkSize)
	}
	return nil
}

// SessionConfig derives the session configuration.
func (c *Config) SessionConfig() suoserial.Config {
	conf := suoserial.DefaultConfig()
	if c.Transport == TransportUSB {
		conf.Variant = suoserial.VariantUSB
	}
	conf.ChunkSize = c.ChunkSize
	conf.MaxWorkBuffer = c.MaxBuffer
	conf.StrictHex = c.StrictHex
	conf.StrictUpdateEntry = c.StrictUpdateEntry
	return conf
}
