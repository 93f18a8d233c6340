// ccreset resets a CC2531 sniffer to recover from USB errors
//
// A sniffer left desynchronized or wedged by an interrupted capture usually
// comes back after a port reset.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/gousb"

	"github.com/herlein/ccsniffer/pkg/cc2531"
)

func main() {
	deviceSel := flag.String("device", "", cc2531.DeviceFlagUsage())
	attempts := flag.Int("attempts", 3, "Enumeration attempts before giving up")
	flag.Parse()

	ctx := gousb.NewContext()
	defer ctx.Close()

	// Try multiple times to find the device
	for attempt := 0; attempt < *attempts; attempt++ {
		dev, err := cc2531.Locate(ctx, cc2531.VendorID, cc2531.ProductID, cc2531.DeviceSelector(*deviceSel))
		if err != nil {
			fmt.Printf("Attempt %d: Error finding device: %v\n", attempt+1, err)
			time.Sleep(time.Second)
			continue
		}

		if dev == nil {
			fmt.Printf("Attempt %d: No device found\n", attempt+1)
			time.Sleep(time.Second)
			continue
		}

		product, _ := dev.Product()
		fmt.Printf("Device %d:%d: %s\n", dev.Desc.Bus, dev.Desc.Address, product)

		err = dev.Reset()
		dev.Close()
		if err != nil {
			fmt.Printf("  Reset failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("  Reset OK\n")
		os.Exit(0)
	}

	fmt.Printf("Failed to find/reset device after %d attempts\n", *attempts)
	os.Exit(1)
}
