package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

// docHeader is prepended to every generated page.
const docHeader = `---
title: %s
---
`

var gendocsCmd = &cobra.Command{
	Use:    "gendocs <dir>",
	Short:  "Generate Markdown documentation for every command",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create docs directory: %w", err)
		}
		rootCmd.DisableAutoGenTag = true
		return doc.GenMarkdownTreeCustom(rootCmd, dir, filePrepender, linkHandler)
	},
}

// filePrepender titles a page after its command path.
func filePrepender(filename string) string {
	name := filepath.Base(filename)
	base := strings.TrimSuffix(name, path.Ext(name))
	return fmt.Sprintf(docHeader, strings.ReplaceAll(base, "_", " "))
}

// linkHandler links pages by file name.
func linkHandler(filename string) string {
	return filename
}
