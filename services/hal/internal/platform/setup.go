package platform

import (
	"riglink-core/services/hal/internal/platform/setups"
	"riglink-core/types"
)

// Public accessors used by hal.Run and the provider.
func GetInitialConfig() types.HALConfig    { return getSelectedSetup() }
func GetSelectedPlan() setups.ResourcePlan { return getSelectedPlan() }
