//go:build !(pico && (pico_rich_dev || pico_bb_proto_1))

package platform

import (
	"riglink-core/services/hal/internal/platform/setups"
	"riglink-core/types"
)

func getSelectedSetup() types.HALConfig    { return types.HALConfig{} }
func getSelectedPlan() setups.ResourcePlan { return setups.ResourcePlan{} }
