package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the command-line flags defined in main.go as a
// YAML document, so a host can
// keep a device string and its options in a file instead of passing
// every flag on the command line. This is ambient convenience for the
// harness binary only; it has no bearing on the module's own device
// string / configuration dictionary, which are unchanged.
type fileConfig struct {
	Device    string   `yaml:"device"`
	Mode      string   `yaml:"mode"`
	Filter    string   `yaml:"filter"`
	Count     int      `yaml:"count"`
	TimeoutMs int      `yaml:"timeout_ms"`
	Promisc   bool     `yaml:"promisc"`
	Debug     bool     `yaml:"debug"`
	DpdkArgs  []string `yaml:"dpdk_args"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
