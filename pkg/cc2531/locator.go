package cc2531

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/gousb"
)

// DeviceSelector narrows which matching sniffer is opened
// Supported formats:
//   - ""         : Use first matching device in enumeration order
//   - "#N"       : Use Nth matching device, 0-indexed (e.g., "#0", "#1")
//   - "bus:addr" : Match by USB bus and address (e.g., "1:10")
type DeviceSelector string

type selectorFilter struct {
	index   int // -1 when unused
	bus     int
	address int
	byAddr  bool
}

func parseSelector(selector DeviceSelector) (selectorFilter, error) {
	sel := string(selector)
	filter := selectorFilter{index: -1}

	if sel == "" {
		return filter, nil
	}

	// Index selector: #0, #1, etc.
	if strings.HasPrefix(sel, "#") {
		index, err := strconv.Atoi(sel[1:])
		if err != nil || index < 0 {
			return filter, fmt.Errorf("invalid device index: %s", sel)
		}
		filter.index = index
		return filter, nil
	}

	// Bus:Address selector: 1:10, 2:5, etc.
	parts := strings.SplitN(sel, ":", 2)
	if len(parts) != 2 {
		return filter, fmt.Errorf("invalid device selector: %s", sel)
	}
	bus, err := strconv.Atoi(parts[0])
	if err != nil {
		return filter, fmt.Errorf("invalid bus number: %s", parts[0])
	}
	addr, err := strconv.Atoi(parts[1])
	if err != nil {
		return filter, fmt.Errorf("invalid address number: %s", parts[1])
	}
	filter.bus, filter.address, filter.byAddr = bus, addr, true
	return filter, nil
}

// DeviceOpener is the part of *gousb.Context the locator uses
type DeviceOpener interface {
	OpenDevices(opener func(desc *gousb.DeviceDesc) bool) ([]*gousb.Device, error)
}

var closeDevice = func(d *gousb.Device) error { return d.Close() }

// matcher returns a predicate that accepts exactly one device: the first one
// with matching identifiers that also satisfies the selector.
func matcher(vendor, product gousb.ID, filter selectorFilter) func(*gousb.DeviceDesc) bool {
	seen := 0
	taken := false
	return func(desc *gousb.DeviceDesc) bool {
		if taken || desc.Vendor != vendor || desc.Product != product {
			return false
		}
		if filter.byAddr && (desc.Bus != filter.bus || desc.Address != filter.address) {
			return false
		}
		if filter.index >= 0 {
			idx := seen
			seen++
			if idx != filter.index {
				return false
			}
		}
		taken = true
		return true
	}
}

// Locate enumerates the bus and opens the first sniffer matching vendor, product
// and selector. A nil device with a nil error means no device matched.
// Enumeration failures are fatal rather than skipped.
func Locate(usb DeviceOpener, vendor, product gousb.ID, selector DeviceSelector) (*gousb.Device, error) {
	filter, err := parseSelector(selector)
	if err != nil {
		return nil, err
	}

	usbDevices, err := usb.OpenDevices(matcher(vendor, product, filter))
	if err != nil {
		for _, d := range usbDevices {
			closeDevice(d)
		}
		return nil, fmt.Errorf("%w: failed to enumerate devices: %w", ErrDevice, err)
	}

	if len(usbDevices) == 0 {
		return nil, nil
	}

	// The matcher accepts one device, but be strict about ownership anyway
	for _, d := range usbDevices[1:] {
		closeDevice(d)
	}
	return usbDevices[0], nil
}

// ListDevices returns the descriptors of every attached device with the given identifiers
// without opening any of them.
func ListDevices(usb DeviceOpener, vendor, product gousb.ID) ([]*gousb.DeviceDesc, error) {
	var found []*gousb.DeviceDesc
	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor == vendor && desc.Product == product {
			found = append(found, desc)
		}
		return false
	})
	if err != nil {
		return found, fmt.Errorf("%w: failed to enumerate devices: %w", ErrDevice, err)
	}
	return found, nil
}

// ParseID parses a USB vendor or product ID in decimal or 0x hex
func ParseID(s string) (gousb.ID, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid USB id %q: must be 0-0xFFFF", s)
	}
	return gousb.ID(v), nil
}

// DeviceFlagUsage returns the usage string for the device selector flag
func DeviceFlagUsage() string {
	return `Device selector. Formats:
    ""        - Use first matching device
    "#N"      - Use Nth matching device, 0-indexed (e.g., "#0", "#1")
    "bus:addr"- Match by USB location (e.g., "1:10")`
}
