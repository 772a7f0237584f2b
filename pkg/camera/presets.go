package camera

// Preset names for common configurations
const (
	PresetDefault = "default"
	PresetSD      = "sd"
	PresetFullHD  = "1080p"
	PresetRear    = "rear"
	PresetSaver   = "saver"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault: DefaultConfig(),
		PresetSD:      SDConfig(),
		PresetFullHD:  FullHDConfig(),
		PresetRear:    RearConfig(),
		PresetSaver:   SaverConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{PresetDefault, PresetSD, PresetFullHD, PresetRear, PresetSaver}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// SDConfig returns 640×480 for slow links and old webcams.
func SDConfig() Config {
	cfg := DefaultConfig()
	cfg.LongEdge = 640
	cfg.ShortEdge = 480
	return cfg
}

// FullHDConfig returns 1920×1080.
// Pose detection runs on a downscaled blob, so this mostly sharpens the
// background.
func FullHDConfig() Config {
	cfg := DefaultConfig()
	cfg.LongEdge = 1920
	cfg.ShortEdge = 1080
	return cfg
}

// RearConfig starts on the rear camera.
func RearConfig() Config {
	cfg := DefaultConfig()
	cfg.Facing = FacingEnvironment
	return cfg
}

// SaverConfig trades frame rate and quality for bandwidth.
func SaverConfig() Config {
	cfg := SDConfig()
	cfg.Framerate = 15
	cfg.Quality = 60
	return cfg
}
