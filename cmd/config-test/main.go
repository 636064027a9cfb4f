package main

import (
	"flag"
	"fmt"
	"os"
	"reflect"

	"go.uber.org/zap"

	"github.com/chrissnell/beringseaice/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite configuration file")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <seaice.yaml> -sqlite <seaice.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("Configuration Comparison Test")
	fmt.Println("===========================")

	// Load YAML configuration
	fmt.Printf("Loading YAML configuration: %s\n", *yamlFile)
	yamlConfig, err := config.NewYAMLProvider(*yamlFile).LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML config: %v\n", err)
		os.Exit(1)
	}

	// Load SQLite configuration
	fmt.Printf("Loading SQLite configuration: %s\n", *sqliteFile)
	sqliteProvider, err := config.NewSQLiteProvider(*sqliteFile, zap.NewNop().Sugar())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating SQLite provider: %v\n", err)
		os.Exit(1)
	}
	defer sqliteProvider.Close()

	sqliteConfig, err := sqliteProvider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading SQLite config: %v\n", err)
		os.Exit(1)
	}

	ok := true
	fmt.Println("\nValidation:")
	for name, cfg := range map[string]*config.ConfigData{"YAML": yamlConfig, "SQLite": sqliteConfig} {
		if err := cfg.Validate(); err != nil {
			fmt.Printf("✗ %s: %v\n", name, err)
			ok = false
		} else {
			fmt.Printf("✓ %s is valid\n", name)
		}
	}

	// Compare configurations
	fmt.Println("\nComparison Results:")
	fmt.Println("==================")

	compareField("Log file", yamlConfig.LogFile, sqliteConfig.LogFile, &ok)
	compareField("Cache directory", yamlConfig.CacheDir, sqliteConfig.CacheDir, &ok)
	compareField("Archive", yamlConfig.Archive, sqliteConfig.Archive, &ok)

	fmt.Printf("\nJobs - YAML: %d, SQLite: %d\n", len(yamlConfig.Jobs), len(sqliteConfig.Jobs))
	if len(yamlConfig.Jobs) != len(sqliteConfig.Jobs) {
		fmt.Println("✗ Job count mismatch")
		ok = false
	}
	for i, yamlJob := range yamlConfig.Jobs {
		if i >= len(sqliteConfig.Jobs) {
			break
		}
		sqliteJob := sqliteConfig.Jobs[i]
		if reflect.DeepEqual(yamlJob, sqliteJob) {
			fmt.Printf("✓ Job %s matches\n", yamlJob.Name)
			continue
		}
		ok = false
		fmt.Printf("✗ Job %s differs\n", yamlJob.Name)
		printJobDiff(yamlJob, sqliteJob)
	}

	if !ok {
		fmt.Println("\nConfigurations differ")
		os.Exit(1)
	}
	fmt.Println("\nConfigurations match")
}

func compareField(name, yamlValue, sqliteValue string, ok *bool) {
	if yamlValue == sqliteValue {
		fmt.Printf("✓ %s matches\n", name)
		return
	}
	*ok = false
	fmt.Printf("✗ %s differs: YAML=%q SQLite=%q\n", name, yamlValue, sqliteValue)
}

func printJobDiff(yamlJob, sqliteJob config.JobData) {
	yv := reflect.ValueOf(yamlJob)
	sv := reflect.ValueOf(sqliteJob)
	t := yv.Type()
	for i := 0; i < t.NumField(); i++ {
		if !reflect.DeepEqual(yv.Field(i).Interface(), sv.Field(i).Interface()) {
			fmt.Printf("    %s: YAML=%+v SQLite=%+v\n", t.Field(i).Name, yv.Field(i).Interface(), sv.Field(i).Interface())
		}
	}
}
