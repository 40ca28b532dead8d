package config

// RuntimeConfig defines the subset of the configuration that can be
// safely modified at runtime through the web API: the mode flags and
// output values of each device, keyed by device name. Hardware and
// logging settings are excluded.
type RuntimeConfig struct {
	Outputs map[string]OutputConfig `yaml:"Outputs" json:"Outputs"`
}

// Runtime extracts the runtime part of c.
func (c *Config) Runtime() RuntimeConfig {
	rc := RuntimeConfig{Outputs: make(map[string]OutputConfig, len(c.Devices))}
	for _, d := range c.Devices {
		rc.Outputs[d.Name] = d.OutputConfig
	}
	return rc
}

// Merge copies the outputs of rc into c. Devices missing from rc keep
// their current settings; names c does not know are reported as
// unknownDevices and otherwise ignored.
func (c *Config) Merge(rc RuntimeConfig) (unknownDevices []string) {
	for name, out := range rc.Outputs {
		found := false
		for i := range c.Devices {
			if c.Devices[i].Name == name {
				c.Devices[i].OutputConfig = out
				found = true
				break
			}
		}
		if !found {
			unknownDevices = append(unknownDevices, name)
		}
	}
	return unknownDevices
}
