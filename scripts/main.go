package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/rxledger/statements/scripts/internal"
)

// Command represents a script that can be run
type Command struct {
	Name        string
	Description string
	Run         func() error
}

var commands = []Command{
	{
		Name:        "seed-directory",
		Description: "Load organizations, wards and patients from a JSON file",
		Run:         internal.SeedDirectory,
	},
	{
		Name:        "process-pending",
		Description: "Run one processing pass over pending statements",
		Run:         internal.ProcessPending,
	},
	{
		Name:        "send-statement",
		Description: "Email the latest statement of a target",
		Run:         internal.SendStatement,
	},
}

func main() {
	var (
		listCommands  bool
		cmdName       string
		directoryFile string
		targetType    string
		targetID      string
	)

	flag.BoolVar(&listCommands, "list", false, "List all available commands")
	flag.StringVar(&cmdName, "cmd", "", "Command to run")
	flag.StringVar(&directoryFile, "directory-file", "", "Path to the directory JSON file")
	flag.StringVar(&targetType, "target-type", "", "Statement target type, Organization or Patient")
	flag.StringVar(&targetID, "target-id", "", "Statement target id")

	flag.Parse()

	if listCommands {
		fmt.Println("Available commands:")
		for _, cmd := range commands {
			fmt.Printf("  %-20s %s\n", cmd.Name, cmd.Description)
		}
		return
	}

	if cmdName == "" {
		log.Fatal("Please specify a command to run using -cmd flag. Use -list to see available commands.")
	}

	// Set command-specific environment variables
	if directoryFile != "" {
		os.Setenv("DIRECTORY_FILE", directoryFile)
	}
	if targetType != "" {
		os.Setenv("TARGET_TYPE", targetType)
	}
	if targetID != "" {
		os.Setenv("TARGET_ID", targetID)
	}

	for _, cmd := range commands {
		if cmd.Name == cmdName {
			if err := cmd.Run(); err != nil {
				log.Fatalf("Error running command %s: %v", cmdName, err)
			}
			return
		}
	}

	log.Fatalf("Unknown command: %s. Use -list to see available commands.", cmdName)
}
