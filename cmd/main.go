/*
Copyright 2025 QuickApiMapper Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	mapper "github.com/JerrettDavis/QuickApiMapper-sub001"
	"github.com/JerrettDavis/QuickApiMapper-sub001/config"
	"github.com/JerrettDavis/QuickApiMapper-sub001/database"
	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/cache"
	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/notification"
)

// Qam represents the CLI application, encapsulating the root Cobra command.
type Qam struct {
	cmd *cobra.Command // Root command for the CLI application
}

// qamInstance holds the runtime Mapper instance, the mapping store it reads
// from and the configuration, shared by every subcommand.
type qamInstance struct {
	mapper *mapper.Mapper        // Mapper object initialized from configuration
	store  database.MappingStore // Store backing the mapper, kept for listener wiring
	cnf    *config.Configuration // Configuration object holding runtime settings
}

// recoverPanic handles any panics during program execution and logs the error using Logrus.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec) // Log the recovered panic
		os.Exit(1)        // Exit the program with an error status
	}
}

// preRun sets up the configuration and initializes the Mapper instance before running any command.
// It ensures that the configuration is loaded, and the Mapper instance is initialized properly.
func preRun(app *qamInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		// Initialize configuration from the specified configuration file.
		err := config.InitConfig("qam.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		// Fetch the configuration settings.
		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		// Initialize the Mapper instance using the fetched configuration.
		newMapper, store, err := setupMapper(cnf)
		if err != nil {
			notification.NotifyError(err) // Notify via the internal notification system
			log.Fatal(err)                // Log the fatal error
		}

		// Assign the new Mapper instance and configuration to the app struct.
		app.mapper = newMapper
		app.store = store
		app.cnf = cnf

		return nil
	}
}

// setupMapper creates and initializes a new Mapper instance based on the
// configured mapping source. The file source reads a directory of mapping
// documents; the postgres source connects to the database and wraps it in a
// read-through cache so hot mappings skip the round trip.
func setupMapper(cfg *config.Configuration) (*mapper.Mapper, database.MappingStore, error) {
	switch cfg.Mappings.Source {
	case "postgres":
		ds, err := database.NewDataSource(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("error getting datasource: %v", err)
		}
		mappingCache, err := cache.NewCache()
		if err != nil {
			return nil, nil, fmt.Errorf("error creating mapping cache: %v", err)
		}
		store := database.NewCachedStore(ds, mappingCache, time.Duration(cfg.Mappings.CacheTTLSec)*time.Second)
		newMapper, err := mapper.NewMapper(store, ds)
		if err != nil {
			return nil, nil, fmt.Errorf("error creating mapper: %v", err)
		}
		return newMapper, store, nil
	default:
		store, err := database.NewFileStore(cfg.Mappings.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("error loading mapping directory: %v", err)
		}
		newMapper, err := mapper.NewMapper(store, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("error creating mapper: %v", err)
		}
		return newMapper, store, nil
	}
}

// NewCLI creates the command-line interface (CLI) for the mapper application.
// It sets up the root command and subcommands like serverCommands, workerCommands, and backupCommands.
func NewCLI() *Qam {
	var configFile string // Configuration file path (defaults to ./qam.json)
	q := &qamInstance{}   // Instance to be passed into commands

	// Define the root command with usage and description.
	var rootCmd = &cobra.Command{
		Use:   "qam",
		Short: "Configuration-driven API payload mapper",  // Brief description for the CLI tool
		Run:   func(cmd *cobra.Command, args []string) {}, // Main function for the root command
	}

	// Add a persistent flag to the root command for specifying the config file.
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./qam.json", "Configuration file for the mapper")

	// Set the persistent pre-run hook to initialize the app and config before executing any command.
	rootCmd.PersistentPreRunE = preRun(q)

	// Add various subcommands to the root command.
	rootCmd.AddCommand(serverCommands(q))  // Command for starting the server
	rootCmd.AddCommand(workerCommands(q))  // Command for worker processes
	rootCmd.AddCommand(backupCommands(q))  // Command for mapping backups
	rootCmd.AddCommand(mappingCommands(q)) // Command for inspecting mappings
	rootCmd.AddCommand(configCommands())   // Command for printing the computed configuration

	return &Qam{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during execution.
// It serves as the main entry point for the CLI application.
func (q Qam) executeCLI() {
	if err := q.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err) // Print any errors that occur
		os.Exit(1)                   // Exit the program with an error status
	}
}

// main is the main function and the entry point for the application.
// It recovers from any panic, initializes the CLI, and executes it.
func main() {
	defer recoverPanic() // Ensure that any panic is handled gracefully

	cli := NewCLI()  // Create the CLI application
	cli.executeCLI() // Execute the CLI commands
}
