package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/digestflow/internal/config"
	"github.com/ShayCichocki/digestflow/internal/rules"
)

var (
	makeRulesFile string
	makeNoCache   bool
	makeJSON      bool
)

var makeCmd = &cobra.Command{
	Use:   "make [target]",
	Short: "Make a target from a YAML rule file",
	Long: `Make a target and, first, everything it depends on, using the rules in
a Digestfile (default: Digestfile.yaml).

A rule names its deps and either a built-in step (digest, count, plot,
report, archive) or a shell command. A target containing '%' is a pattern
rule: 'data/%.peptides.txt' matches data/KLF4.peptides.txt with stem KLF4,
and every '%' in its deps, command and params is replaced by the stem.
A rule with neither step nor command is phony and only makes its deps.

Results are memoized in the project state database like 'run'.
'digestflow init --rules <input_dir>' writes a Digestfile for the pipeline.

Examples:
  digestflow make                           # make the default target
  digestflow make data/KLF4.plot.txt        # make one plot and its deps
  digestflow make clean`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMake,
}

func init() {
	makeCmd.Flags().StringVar(&makeRulesFile, "rules", rules.DefaultFile, "Rule file")
	makeCmd.Flags().BoolVar(&makeNoCache, "no-cache", false, "Make every target even when a cached result exists")
	makeCmd.Flags().BoolVar(&makeJSON, "json", false, "Print the result as JSON")
}

func runMake(cmd *cobra.Command, args []string) error {
	target := ""
	if len(args) > 0 {
		target = args[0]
	}

	set, err := rules.Load(makeRulesFile)
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	root, err := projectRoot()
	if err != nil {
		return err
	}

	store, err := openStore(cfg, root)
	if err != nil {
		return err
	}
	defer store.Close()

	maker := rules.NewMaker(set,
		rules.WithStore(store),
		rules.WithCache(cfg.Cache.Enabled && !makeNoCache),
		rules.WithWorkDir(root),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := maker.Make(ctx, target)
	if makeJSON {
		data, jerr := json.MarshalIndent(res, "", "  ")
		if jerr != nil {
			return fmt.Errorf("encode result: %w", jerr)
		}
		fmt.Println(string(data))
		return err
	}

	for _, id := range res.Cached {
		printStatus("=", id+" (cached)", color.FgBlue)
	}
	for _, id := range res.Executed {
		printStatus("✓", id, color.FgGreen)
	}
	if err != nil {
		return err
	}
	if len(res.Executed) == 0 {
		fmt.Printf("%s is up to date.\n", res.Target)
	}
	return nil
}
