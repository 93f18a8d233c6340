package cc2531

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/gousb"
)

// DebugSink receives raw frames for optional hex dumping.
type DebugSink interface {
	Dump(label string, data []byte)
}

// Device represents a bound CC2531 sniffer. It is owned by a single session
// and is not safe for concurrent use.
type Device struct {
	usbDevice    *gousb.Device
	usbConfig    *gousb.Config
	usbInterface *gousb.Interface
	epIn         inEndpoint
	epOut        outEndpoint
	InAddress    gousb.EndpointAddress
	OutAddress   gousb.EndpointAddress
	Manufacturer string
	Product      string
	Bus          int
	Address      int
	debug        DebugSink
	state        FrameState
}

// Bind claims interface 0 of an opened sniffer and discovers its bulk endpoints.
// On success the returned Device owns usbDev; on failure the caller still does.
func Bind(usbDev *gousb.Device) (*Device, error) {
	manufacturer, _ := usbDev.Manufacturer()
	product, _ := usbDev.Product()

	usbDev.SetAutoDetach(true)

	configNum, err := usbDev.ActiveConfigNum()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read active configuration: %w", ErrDevice, err)
	}

	config, err := usbDev.Config(configNum)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get configuration: %w", ErrDevice, err)
	}

	iface, err := config.Interface(InterfaceNumber, AltSetting)
	if err != nil {
		config.Close()
		return nil, fmt.Errorf("%w: failed to claim interface: %w", ErrDevice, err)
	}

	inDesc, outDesc, err := findBulkEndpoints(iface.Setting.Endpoints)
	if err != nil {
		iface.Close()
		config.Close()
		return nil, err
	}

	epIn, err := iface.InEndpoint(inDesc.Number)
	if err != nil {
		iface.Close()
		config.Close()
		return nil, fmt.Errorf("%w: failed to get IN endpoint: %w", ErrDevice, err)
	}

	epOut, err := iface.OutEndpoint(outDesc.Number)
	if err != nil {
		iface.Close()
		config.Close()
		return nil, fmt.Errorf("%w: failed to get OUT endpoint: %w", ErrDevice, err)
	}

	desc := usbDev.Desc
	device := &Device{
		usbDevice:    usbDev,
		usbConfig:    config,
		usbInterface: iface,
		epIn:         epIn,
		epOut:        epOut,
		InAddress:    inDesc.Address,
		OutAddress:   outDesc.Address,
		Manufacturer: manufacturer,
		Product:      product,
		Bus:          desc.Bus,
		Address:      desc.Address,
		state:        AwaitingFrame,
	}

	// Drain any stale data from the receive endpoint
	device.drainReceiveBuffer()

	return device, nil
}

func newDevice(in inEndpoint, out outEndpoint) *Device {
	return &Device{epIn: in, epOut: out, state: AwaitingFrame}
}

// findBulkEndpoints picks the first bulk IN and first bulk OUT endpoint,
// ordered by endpoint address since gousb hands them out as a map.
func findBulkEndpoints(endpoints map[gousb.EndpointAddress]gousb.EndpointDesc) (in, out gousb.EndpointDesc, err error) {
	addrs := make([]int, 0, len(endpoints))
	for addr := range endpoints {
		addrs = append(addrs, int(addr))
	}
	sort.Ints(addrs)

	var foundIn, foundOut bool
	for _, addr := range addrs {
		ep := endpoints[gousb.EndpointAddress(addr)]
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch ep.Direction {
		case gousb.EndpointDirectionIn:
			if !foundIn {
				in, foundIn = ep, true
			}
		case gousb.EndpointDirectionOut:
			if !foundOut {
				out, foundOut = ep, true
			}
		}
	}

	if !foundIn {
		return in, out, fmt.Errorf("%w: no bulk IN endpoint on interface %d", ErrDevice, InterfaceNumber)
	}
	if !foundOut {
		return in, out, fmt.Errorf("%w: no bulk OUT endpoint on interface %d", ErrDevice, InterfaceNumber)
	}
	return in, out, nil
}

// SetDebugSink enables frame dumps; nil disables them.
func (d *Device) SetDebugSink(sink DebugSink) {
	d.debug = sink
}

func (d *Device) dump(label string, data []byte) {
	if d.debug != nil {
		d.debug.Dump(label, data)
	}
}

// Close releases the interface, configuration and device in that order
func (d *Device) Close() error {
	if d.usbInterface != nil {
		d.usbInterface.Close()
		d.usbInterface = nil
	}
	if d.usbConfig != nil {
		d.usbConfig.Close()
		d.usbConfig = nil
	}
	if d.usbDevice != nil {
		err := d.usbDevice.Close()
		d.usbDevice = nil
		return err
	}
	return nil
}

// drainReceiveBuffer reads and discards frames left over from a previous session
func (d *Device) drainReceiveBuffer() {
	buf := make([]byte, MaxTransferSize)
	for i := 0; i < 5; i++ {
		n, err := d.readBulk(context.Background(), "drain", buf, DrainTimeout)
		if err != nil || n == 0 {
			break
		}
	}
}

// String returns a human-readable description of the device
func (d *Device) String() string {
	return fmt.Sprintf("%s %s (bus %d address %d)", d.Manufacturer, d.Product, d.Bus, d.Address)
}
