package core

// Config is runtime configuration shared by the CLI and the daemon.
type Config struct {
	// Entities are the configured device ids in display order. Empty
	// means every media_player entity.
	Entities []string
	Identity string
	Aliases  map[string]string
	Defaults Defaults
	Player   PlayerOptions
}

// Defaults defines default selector values.
type Defaults struct {
	Player string
}
