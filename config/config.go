// Package config loads EchoConfig (SPEC_FULL.md §2), the yaml-driven
// settings bundle for a runtime instance: storage path, debug toggle,
// resource limits (mirrored into a security.Policy), and the JIT enable
// switch. Loading style (yaml.v3, defaults-then-override) follows the
// teacher's own conformance/loader.go use of gopkg.in/yaml.v3.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"echo/security"
)

// Config is the top-level settings bundle (spec.md §5 "EchoConfig").
type Config struct {
	StoragePath     string `yaml:"storage_path"`
	Debug           bool   `yaml:"debug"`
	MaxObjects      int    `yaml:"max_objects"`
	MaxEvalDepth    int    `yaml:"max_eval_depth"`
	MaxMemoryBytes  uint64 `yaml:"max_memory_bytes"`
	MaxExecutionMs  int64  `yaml:"max_execution_ms"`
	EnableJIT       bool   `yaml:"enable_jit"`
	JITHotThreshold int    `yaml:"jit_hot_threshold"`
}

// Default returns the configuration a fresh `echo` invocation runs with
// absent an explicit config file: JIT on, resource limits from
// security.DefaultPolicy.
func Default() Config {
	p := security.DefaultPolicy()
	return Config{
		StoragePath:     "echo.db",
		Debug:           false,
		MaxObjects:      p.MaxObjects,
		MaxEvalDepth:    p.MaxEvalDepth,
		MaxMemoryBytes:  p.MaxMemoryBytes,
		MaxExecutionMs:  p.MaxExecutionTime,
		EnableJIT:       true,
		JITHotThreshold: 10,
	}
}

// Load reads a yaml config file at path, applying its fields over Default().
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SecurityPolicy projects the resource-limit fields of Config into a
// security.Policy.
func (c Config) SecurityPolicy() security.Policy {
	return security.Policy{
		MaxMemoryBytes:   c.MaxMemoryBytes,
		MaxExecutionTime: c.MaxExecutionMs,
		MaxObjects:       c.MaxObjects,
		MaxEvalDepth:     c.MaxEvalDepth,
	}
}
