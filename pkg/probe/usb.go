package probe

import (
	"context"
	"fmt"

	"github.com/google/gousb"
)

// VendorIDST is the STMicroelectronics USB vendor ID.
const VendorIDST = 0x0483

// USBProbe is an ST-Link seen on the USB bus, independent of the programmer
// tool.
type USBProbe struct {
	Version   string
	VendorID  uint16
	ProductID uint16
	Bus       int
	Address   int
	// Serial is the USB iSerial string, empty when the device could not be
	// opened (usually missing udev permissions).
	Serial string
}

// Label returns a user-friendly description for the probe.
func (u USBProbe) Label() string {
	if u.Serial != "" {
		return fmt.Sprintf("%s SN %s", u.Version, u.Serial)
	}
	return fmt.Sprintf("%s (bus %d addr %d)", u.Version, u.Bus, u.Address)
}

type knownUSBDevice struct {
	ProductID uint16
	Version   string
}

var knownSTLinkPIDs = []knownUSBDevice{
	{ProductID: 0x3744, Version: "ST-LINK/V1"},
	{ProductID: 0x3748, Version: "ST-LINK/V2"},
	{ProductID: 0x374a, Version: "ST-LINK/V2-1"},
	{ProductID: 0x374b, Version: "ST-LINK/V2-1"},
	{ProductID: 0x3752, Version: "ST-LINK/V2-1"},
	{ProductID: 0x374d, Version: "STLINK-V3 loader"},
	{ProductID: 0x374e, Version: "STLINK-V3E"},
	{ProductID: 0x374f, Version: "STLINK-V3S"},
	{ProductID: 0x3753, Version: "STLINK-V3 2VCP"},
	{ProductID: 0x3754, Version: "STLINK-V3"},
	{ProductID: 0x3757, Version: "STLINK-V3PWR"},
}

// ScanUSB enumerates ST-Link probes on the USB bus. Devices that cannot be
// opened are still reported, without a serial.
func ScanUSB(ctx context.Context) ([]USBProbe, error) {
	usb := gousb.NewContext()
	defer usb.Close()

	var results []USBProbe
	devs, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		info, ok := classifyUSBDevice(desc)
		if !ok {
			return false
		}
		results = append(results, info)
		return true
	})
	for _, dev := range devs {
		if sn, snErr := dev.SerialNumber(); snErr == nil {
			for i := range results {
				if results[i].Bus == dev.Desc.Bus && results[i].Address == dev.Desc.Address {
					results[i].Serial = sn
				}
			}
		}
		dev.Close()
	}
	if err != nil && err != gousb.ErrorAccess {
		return results, fmt.Errorf("probe: usb scan: %w", err)
	}
	return results, nil
}

func classifyUSBDevice(desc *gousb.DeviceDesc) (USBProbe, bool) {
	if uint16(desc.Vendor) != VendorIDST {
		return USBProbe{}, false
	}
	for _, known := range knownSTLinkPIDs {
		if uint16(desc.Product) == known.ProductID {
			return USBProbe{
				Version:   known.Version,
				VendorID:  VendorIDST,
				ProductID: known.ProductID,
				Bus:       desc.Bus,
				Address:   desc.Address,
			}, true
		}
	}
	return USBProbe{}, false
}
