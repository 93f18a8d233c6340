// lscc: List all connected CC2531 sniffer devices
//
// This tool enumerates all CC2531 sniffers connected to the system
// and displays their bus locations and basic information.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/gousb"

	"github.com/herlein/ccsniffer/pkg/cc2531"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output (open each device and show its strings and endpoints)")
	vendor, product := gousb.ID(cc2531.VendorID), gousb.ID(cc2531.ProductID)
	flag.Func("vid", "USB vendor ID (default 0x0451)", func(s string) (err error) {
		vendor, err = cc2531.ParseID(s)
		return err
	})
	flag.Func("pid", "USB product ID (default 0x16a8)", func(s string) (err error) {
		product, err = cc2531.ParseID(s)
		return err
	})
	flag.Parse()

	// Create USB context
	context := gousb.NewContext()
	defer context.Close()

	descs, err := cc2531.ListDevices(context, vendor, product)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(descs) == 0 {
		fmt.Println("No CC2531 devices found")
		os.Exit(0)
	}

	fmt.Printf("Found %d CC2531 device(s):\n", len(descs))
	fmt.Println()

	for i, desc := range descs {
		if !*verbose {
			fmt.Printf("  #%d  %s  %d:%d\n", i, desc.Speed, desc.Bus, desc.Address)
			continue
		}

		fmt.Printf("Device #%d:\n", i)
		fmt.Printf("  Bus:Address:  %d:%d\n", desc.Bus, desc.Address)
		fmt.Printf("  ID:           %s:%s\n", desc.Vendor, desc.Product)
		fmt.Printf("  Speed:        %s\n", desc.Speed)
		showDetails(context, vendor, product, desc)
		fmt.Println()
	}

	if !*verbose {
		fmt.Println()
		fmt.Println("Use -device flag with ccsniffer to select device:")
		fmt.Println("  -device \"#0\"    Select by index")
		fmt.Println("  -device \"1:10\"  Select by bus:address")
	}
}

// showDetails binds the device at desc's location to report its strings and endpoints
func showDetails(context *gousb.Context, vendor, product gousb.ID, desc *gousb.DeviceDesc) {
	selector := cc2531.DeviceSelector(fmt.Sprintf("%d:%d", desc.Bus, desc.Address))
	usbDev, err := cc2531.Locate(context, vendor, product, selector)
	if err != nil {
		fmt.Printf("  Open:         (error: %v)\n", err)
		return
	}
	if usbDev == nil {
		fmt.Printf("  Open:         (device gone)\n")
		return
	}

	device, err := cc2531.Bind(usbDev)
	if err != nil {
		usbDev.Close()
		fmt.Printf("  Bind:         (error: %v)\n", err)
		return
	}
	defer device.Close()

	fmt.Printf("  Manufacturer: %s\n", device.Manufacturer)
	fmt.Printf("  Product:      %s\n", device.Product)
	fmt.Printf("  Endpoints:    in %s, out %s\n", device.InAddress, device.OutAddress)
}
