//go:build pico && (pico_rich_dev || pico_bb_proto_1)

package provider

import (
	"riglink-core/services/hal/internal/provider/setups"
	"riglink-core/types"
)

func init() {
	SelectedPlan = setups.SelectedPlan
	InitialHALConfig = types.HALConfig(setups.SelectedSetup)
}
