// objview displays an OBJ model or a baked cache file.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sqweek/dialog"
	"go.uber.org/zap"

	"github.com/Faultbox/fasterobj/internal/config"
	"github.com/Faultbox/fasterobj/internal/logger"
	"github.com/Faultbox/fasterobj/internal/viewer"
)

var (
	flagRebuild   = flag.Bool("rebuild", false, "Ignore the cache file and parse the OBJ again")
	flagInstances = flag.Int("instances", 1, "Number of copies to draw")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: objview [options] [file.obj|file.objc]")
		fmt.Fprintln(os.Stderr, "\nWithout a file a dialog asks for one.")
		fmt.Fprintln(os.Stderr, "\nKeys: drag to orbit, right-drag to pan, wheel to zoom,")
		fmt.Fprintln(os.Stderr, "      1/2/3 switch backend, B bounds, O open, R reframe,")
		fmt.Fprintln(os.Stderr, "      F12 screenshot, Esc quit")
		fmt.Fprintln(os.Stderr)
		flag.PrintDefaults()
	}

	// Parse CLI flags first
	config.ParseFlags()
	path := flag.Arg(0)
	if path == "" {
		var err error
		path, err = dialog.File().
			Filter("OBJ models", "obj", "objc").
			Filter("All Files", "*").
			Title("Open Model").
			Load()
		if err != nil {
			if err != dialog.ErrCancelled {
				fmt.Fprintf(os.Stderr, "File dialog error: %v\n", err)
			}
			flag.Usage()
			os.Exit(1)
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== objview ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	v, err := viewer.New(cfg, viewer.Options{
		Path:      path,
		Rebuild:   *flagRebuild,
		Instances: *flagInstances,
	})
	if err != nil {
		logger.Error("failed to start viewer", zap.Error(err))
		os.Exit(1)
	}
	defer v.Close()

	if err := v.Run(); err != nil {
		logger.Error("viewer error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("viewer closed normally")
}
