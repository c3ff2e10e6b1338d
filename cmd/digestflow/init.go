package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/digestflow/internal/config"
	"github.com/ShayCichocki/digestflow/internal/rules"
)

var (
	initForce    bool
	initRulesDir string
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a digestflow project",
	Long: `Initialize a directory for use with digestflow.

This command:
  - Creates the .digestflow directory (state database, logs, signals)
  - Writes .digestflow.yaml with the default configuration
  - With --rules <input_dir>, writes a Digestfile.yaml for 'digestflow make'

The directory argument is optional and defaults to the current directory.

Examples:
  digestflow init                  # Initialize current directory
  digestflow init ./proteins       # Initialize specific directory
  digestflow init --rules fasta    # Also generate rules over fasta/*.fasta`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing configuration and rule file")
	initCmd.Flags().StringVar(&initRulesDir, "rules", "", "Generate Digestfile.yaml over the FASTA files in this directory")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing digestflow in %s...\n\n", absPath)

	stateDir := filepath.Join(absPath, ".digestflow")
	for _, dir := range []string{stateDir, filepath.Join(stateDir, "logs"), filepath.Join(stateDir, "signals")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	printStatus("✓", "Created .digestflow directory structure", color.FgGreen)

	cfg := config.Default()
	configPath := filepath.Join(absPath, config.ProjectFile)
	if err := writeUnlessExists(configPath, func() error { return config.Save(cfg, configPath) }); err != nil {
		return err
	}

	if initRulesDir != "" {
		inputDir, err := filepath.Abs(initRulesDir)
		if err != nil {
			return fmt.Errorf("resolving input directory: %w", err)
		}
		// Rule paths are relative to the project directory.
		if err := os.Chdir(absPath); err != nil {
			return fmt.Errorf("changing to directory %s: %w", absPath, err)
		}
		set, err := rules.Generate(relTo(absPath, inputDir), cfg.Paths.DataDir, cfg.Params())
		if err != nil {
			printStatus("✗", "Could not generate rules", color.FgRed)
			return err
		}
		data, err := set.Marshal()
		if err != nil {
			return err
		}
		rulesPath := filepath.Join(absPath, rules.DefaultFile)
		if err := writeUnlessExists(rulesPath, func() error { return os.WriteFile(rulesPath, data, 0644) }); err != nil {
			return err
		}
	}

	fmt.Printf("\n%s digestflow initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	fmt.Println("  1. Put one protein per .fasta file in an input directory")
	fmt.Println("  2. Run the pipeline:")
	fmt.Println("     digestflow run <input_dir>")
	if initRulesDir != "" {
		fmt.Println("     # or: digestflow make")
	}
	fmt.Println()
	fmt.Printf("Outputs go to %s/ (see 'digestflow config paths.data_dir').\n", cfg.Paths.DataDir)
	return nil
}

// writeUnlessExists calls write unless path exists and --force is unset.
func writeUnlessExists(path string, write func() error) error {
	name := filepath.Base(path)
	if _, err := os.Stat(path); err == nil && !initForce {
		printStatus("⚠", name+" already exists (use --force to overwrite)", color.FgYellow)
		return nil
	}
	if err := write(); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	printStatus("✓", "Created "+name, color.FgGreen)
	return nil
}

// relTo returns path relative to base when possible.
func relTo(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil {
		return rel
	}
	return path
}
