package config

var Presets = map[string]func() *Config{
	"single": func() *Config {
		return DefaultConfig()
	},
	"double": func() *Config {
		cfg := DefaultConfig()
		cfg.Cart.Mass = 0.8
		cfg.Poles = []PoleConfig{
			{Mass: 0.2, Length: 0.6, Friction: 0.001},
			{Mass: 0.1, Length: 0.3, Friction: 0.001},
		}
		cfg.Dt = 0.005
		cfg.LQR.Q = []float64{10, 1, 100, 1, 100, 1}
		return cfg
	},
	"triple": func() *Config {
		cfg := DefaultConfig()
		cfg.Cart.Mass = 1.0
		cfg.Poles = []PoleConfig{
			{Mass: 0.2, Length: 0.9, Friction: 0.001},
			{Mass: 0.15, Length: 0.6, Friction: 0.001},
			{Mass: 0.1, Length: 0.3, Friction: 0.001},
		}
		cfg.Dt = 0.005
		cfg.LQR.Mode = LQRDiscrete
		cfg.LQR.Q = []float64{10, 1, 100, 1, 100, 1, 100, 1}
		return cfg
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	build, ok := Presets[name]
	if !ok {
		return nil
	}
	return build()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}
