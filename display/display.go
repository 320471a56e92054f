package display

import (
	"github.com/linuxdeepin/go-lib/dbusutil"
	"github.com/linuxdeepin/go-lib/log"
)

var logger = log.NewLogger("remdisp/display")

const (
	dbusServiceName = "org.remdisp.Display"
	dbusInterface   = "org.remdisp.Display"
	dbusPath        = "/org/remdisp/Display"
)

// Start creates the display engine, exports it on the session bus and
// starts its event loop. The returned Manager is the entry point for the
// remote-display transport (AdjustMonitorLayout) and the output layer.
func Start(service *dbusutil.Service, outputMgr OutputManager) (*Manager, error) {
	cfg, err := loadConfig(configFile)
	if err != nil {
		logger.Warning("failed to load config, using defaults:", err)
		cfg = defaultConfig()
	}

	m := newManager(service, cfg, outputMgr)
	m.start()

	if service != nil {
		err = service.Export(dbusPath, m)
		if err != nil {
			m.stop()
			return nil, err
		}
		err = service.RequestName(dbusServiceName)
		if err != nil {
			m.stop()
			return nil, err
		}
	}

	m.watchConfig(configFile)
	return m, nil
}

func SetLogLevel(level log.Priority) {
	logger.SetLogLevel(level)
}
