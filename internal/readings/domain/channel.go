package readings

// Channel groups. The two-character names come from the national metering
// identifiers; Imp/Exp are the channels assigned by the generic CSV import.
var (
	// LoadChannels carry general household consumption.
	LoadChannels = []string{"E1", "11", "Imp"}
	// ControlledChannels carry controlled load (off-peak hot water and the like).
	ControlledChannels = []string{"E2", "41"}
	// GenerationChannels carry energy exported to the grid.
	GenerationChannels = []string{"B1", "71", "Exp"}
)
