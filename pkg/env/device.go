package env

import (
	"fmt"
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// Identity of the USB-CDC function.
const (
	VendorID     = 0x2DCF
	ProductID    = 0x6002
	Manufacturer = "Dialog Semiconductor"
	Product      = "DA1469x CDC"
)

const serialLength = 12

// DeviceInfo identifies the device on shared transports.
type DeviceInfo struct {
	VendorID     uint16
	ProductID    uint16
	Manufacturer string
	Product      string
	Serial       string
}

// NewDeviceInfo creates the DeviceInfo, the serial derived from the
// machine id.
func NewDeviceInfo() DeviceInfo {
	return DeviceInfo{
		VendorID:     VendorID,
		ProductID:    ProductID,
		Manufacturer: Manufacturer,
		Product:      Product,
		Serial:       MachineSerial(),
	}
}

// MachineSerial derives a stable serial number from the machine id.
// The hostname is used when the machine id is unavailable.
func MachineSerial() string {
	id, err := machineid.ProtectedID("suoserial")
	if err != nil {
		glog.Warningf("machine id: %v", err)
		if id, err = os.Hostname(); err != nil {
			return "unknown"
		}
		return id
	}
	if len(id) > serialLength {
		id = id[:serialLength]
	}
	return id
}

// String implements fmt.Stringer.
func (d DeviceInfo) String() string {
	return fmt.Sprintf("%04x:%04x %s %s [%s]", d.VendorID, d.ProductID, d.Manufacturer, d.Product, d.Serial)
}

// DeviceName returns the configured name or the serial.
func (c *Config) DeviceName(info DeviceInfo) string {
	if c.Name != "" {
		return c.Name
	}
	return info.Serial
}
