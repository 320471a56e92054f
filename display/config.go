package display

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/davecgh/go-spew/spew"
	"github.com/fsnotify/fsnotify"
	"github.com/linuxdeepin/go-lib/log"
	"github.com/linuxdeepin/go-lib/xdg/basedir"
)

// ScalePolicy selects how per-monitor scale factors are derived from the
// client-reported desktop scale factor. Exactly one policy is active per
// engine instance.
type ScalePolicy string

const (
	// ScalePolicyDisabled ignores client scale factors, scale is always 1.
	ScalePolicyDisabled ScalePolicy = "disabled"
	// ScalePolicyDebug forces the configured DebugScaleFactor percentage.
	ScalePolicyDebug ScalePolicy = "debug"
	// ScalePolicyFractional uses the client fractional desktop scale as is.
	ScalePolicyFractional ScalePolicy = "fractional"
	// ScalePolicyRound rounds the client desktop scale to the nearest integer.
	ScalePolicyRound ScalePolicy = "round"
	// ScalePolicyTruncate truncates the client desktop scale to an integer.
	ScalePolicyTruncate ScalePolicy = "truncate"
)

// ~/.config/remdisp/display.json
var configFile string

func init() {
	cfgDir := filepath.Join(basedir.GetUserConfigDir(), "remdisp")
	configFile = filepath.Join(cfgDir, "display.json")
}

type Config struct {
	ScalePolicy ScalePolicy
	// DebugScaleFactor is the forced percentage for ScalePolicyDebug,
	// e.g. 200 for 2x.
	DebugScaleFactor uint32
}

func defaultConfig() *Config {
	return &Config{ScalePolicy: ScalePolicyDisabled}
}

func loadConfig(filename string) (*Config, error) {
	data, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var cfg Config
	err = json.Unmarshal(data, &cfg)
	if err != nil {
		return nil, err
	}
	switch cfg.ScalePolicy {
	case ScalePolicyDisabled, ScalePolicyDebug, ScalePolicyFractional,
		ScalePolicyRound, ScalePolicyTruncate:
	case "":
		cfg.ScalePolicy = ScalePolicyDisabled
	default:
		logger.Warning("unknown scale policy, scaling disabled:", cfg.ScalePolicy)
		cfg.ScalePolicy = ScalePolicyDisabled
	}
	if logger.GetLogLevel() == log.LevelDebug {
		logger.Debug("load config:", spew.Sdump(&cfg))
	}
	return &cfg, nil
}

func (cfg *Config) save(filename string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	err = os.MkdirAll(filepath.Dir(filename), 0755)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(filename, data, 0644)
}

// clientScaleFor computes the true client to local ratio for one monitor
// under this configuration.
func (cfg *Config) clientScaleFor(record *MonitorRecord) float64 {
	switch cfg.ScalePolicy {
	case ScalePolicyDebug:
		if cfg.DebugScaleFactor != 0 {
			return float64(cfg.DebugScaleFactor) / 100
		}
		return 1
	case ScalePolicyFractional:
		return float64(record.DesktopScaleFactor) / 100
	case ScalePolicyRound:
		scale := (record.DesktopScaleFactor + 50) / 100
		if scale < 1 {
			scale = 1
		}
		return float64(scale)
	case ScalePolicyTruncate:
		scale := record.DesktopScaleFactor / 100
		if scale < 1 {
			scale = 1
		}
		return float64(scale)
	default:
		return 1
	}
}

// outputScaleFor computes the integer output scale, never below 1.
func (cfg *Config) outputScaleFor(record *MonitorRecord) int {
	scale := int(cfg.clientScaleFor(record))
	if scale < 1 {
		scale = 1
	}
	return scale
}

// watchConfig reloads the scaling policy when the config file changes.
// The reload is marshaled onto the engine loop like any other mutation.
func (m *Manager) watchConfig(filename string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warning("failed to create config watcher:", err)
		return
	}
	// watch the directory, editors replace the file on save
	err = watcher.Add(filepath.Dir(filename))
	if err != nil {
		logger.Warning("failed to watch config dir:", err)
		_ = watcher.Close()
		return
	}

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != filename {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := loadConfig(filename)
				if err != nil {
					logger.Warning("failed to reload config:", err)
					continue
				}
				m.post(func() {
					logger.Debug("scale policy changed:", cfg.ScalePolicy)
					m.config = cfg
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warning("config watcher error:", err)
			}
		}
	}()
}
