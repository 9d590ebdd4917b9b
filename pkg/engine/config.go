package engine

import (
	"os"
	"path"
	"path/filepath"
	"time"

	"golang.org/x/mod/modfile"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the per-project engine configuration file.
const ConfigFileName = "loom.yaml"

// Config carries engine tunables, usually read from loom.yaml at the
// project root. Zero values select defaults.
type Config struct {
	// AppName identifies the application in logs and traces. Defaults to
	// the module name from go.mod.
	AppName string `yaml:"app_name"`
	// TargetFPS sets the frame budget; 0 means 60.
	TargetFPS int `yaml:"target_fps"`
	// TimingWindow is how many frame timings to retain; 0 means 120.
	TimingWindow int `yaml:"timing_window"`
	// Debug turns programming errors into panics instead of log entries.
	Debug bool `yaml:"debug"`
}

// FrameBudget converts the target FPS into a per-frame duration.
func (c Config) FrameBudget() time.Duration {
	if c.TargetFPS <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.TargetFPS)
}

func timingWindow(c Config) int {
	return c.TimingWindow
}

// LoadConfig reads loom.yaml from dir. A missing file yields defaults; a
// malformed one is an error. The app name falls back to the go.mod module
// name when the file does not set one.
func LoadConfig(dir string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(filepath.Join(dir, ConfigFileName))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return Config{}, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	if cfg.AppName == "" {
		cfg.AppName = moduleName(dir)
	}
	return cfg, nil
}

// moduleName extracts the last path element of the module declared in dir's
// go.mod, empty when there is none.
func moduleName(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return ""
	}
	file, err := modfile.ParseLax("go.mod", data, nil)
	if err != nil || file.Module == nil {
		return ""
	}
	return path.Base(file.Module.Mod.Path)
}
