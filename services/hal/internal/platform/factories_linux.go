// services/hal/internal/platform/factories_linux.go
//go:build linux && arm64 && !(rp2040 || rp2350)

package platform

import (
	"riglink-core/services/hal/internal/halcore"

	"tinygo.org/x/drivers"
)

// On linux/arm64 builds, default to "not configured". Tests should inject fakes.
func DefaultI2CFactory() halcore.I2CBusFactory { return noI2CFactory{} }
func DefaultPinFactory() halcore.PinFactory    { return noPinFactory{} }
func DefaultUARTFactory() halcore.UARTFactory  { return noUARTFactory{} }

type noI2CFactory struct{}

func (noI2CFactory) ByID(string) (drivers.I2C, bool) { return nil, false }

type noPinFactory struct{}

func (noPinFactory) ByNumber(int) (halcore.GPIOPin, bool) { return nil, false }

type noUARTFactory struct{}

func (noUARTFactory) ByID(string) (halcore.UARTPort, bool) { return nil, false }
