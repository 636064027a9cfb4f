package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrissnell/beringseaice/internal/app"
	"github.com/chrissnell/beringseaice/internal/constants"
	"github.com/chrissnell/beringseaice/internal/log"
	"github.com/chrissnell/beringseaice/pkg/config"
)

func main() {
	cfgFile := flag.String("config", constants.DefaultConfigFile, "Path to configuration source:\n\t\t\t  YAML: seaice.yaml\n\t\t\t  SQLite: seaice.db\n\t\t\t  Use 'config-convert' tool to convert YAML→SQLite")
	cfgBackend := flag.String("config-backend", "yaml", "Configuration backend type: 'yaml' for YAML files, 'sqlite' for SQLite databases")
	jobName := flag.String("job", "", "Run only the named job")
	runs := flag.Bool("runs", false, "List archived runs (of -job when given) and exit")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("seaice %s\n", constants.Version)
		os.Exit(0)
	}

	provider, err := configure(*cfgFile, *cfgBackend, *debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		log.Sync()
		os.Exit(1)
	}
	defer log.Sync()
	defer provider.Close()

	application := app.New(provider, log.GetSugaredLogger()).Only(*jobName)
	if *runs {
		err = application.History(context.Background(), os.Stdout)
	} else {
		err = application.Run(context.Background())
	}
	if err != nil {
		log.Errorf("Application error: %v", err)
		provider.Close()
		log.Sync()
		os.Exit(1)
	}
}

// configure sets up logging and opens the configuration. When the
// configuration names a log file, logging is re-initialized with it and the
// provider is reopened so its own messages reach the file too.
func configure(cfgFile, cfgBackend string, debug bool) (config.ConfigProvider, error) {
	if err := log.Init(debug); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	provider, err := openProvider(cfgFile, cfgBackend)
	if err != nil {
		return nil, fmt.Errorf("failed to open configuration: %w", err)
	}
	cfgData, err := provider.LoadConfig()
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}
	if cfgData.LogFile == "" {
		return provider, nil
	}

	provider.Close()
	if err := log.InitWithOptions(log.Options{Debug: debug, File: cfgData.LogFile}); err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", cfgData.LogFile, err)
	}
	return openProvider(cfgFile, cfgBackend)
}

func openProvider(cfgFile, cfgBackend string) (config.ConfigProvider, error) {
	filename, _ := filepath.Abs(cfgFile)

	switch cfgBackend {
	case "yaml":
		return config.NewYAMLProvider(filename), nil
	case "sqlite":
		provider, err := config.NewSQLiteProvider(filename, log.GetSugaredLogger())
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", cfgBackend)
	}
}
