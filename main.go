package main

import (
	"flag"
	"os"

	"github.com/linuxdeepin/go-lib/dbusutil"
	"github.com/linuxdeepin/go-lib/log"
	"github.com/quartzic/remdisp/display"
)

var logger = log.NewLogger("remdisp")

var debug = flag.Bool("d", false, "debug")

func main() {
	flag.Parse()

	if *debug {
		logger.SetLogLevel(log.LevelDebug)
		display.SetLogLevel(log.LevelDebug)
	}

	service, err := dbusutil.NewSessionService()
	if err != nil {
		logger.Error("failed to connect session bus:", err)
		os.Exit(1)
	}

	// The output layer registers itself once the renderer is up; until
	// then heads are created awaiting placement.
	_, err = display.Start(service, nil)
	if err != nil {
		logger.Error("failed to start display engine:", err)
		os.Exit(1)
	}

	service.Wait()
}
