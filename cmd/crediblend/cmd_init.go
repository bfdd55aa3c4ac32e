package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/crediblend/crediblend/internal/projectconfig"
	"github.com/crediblend/crediblend/internal/wizard"
)

func newInitCommand() *cobra.Command {
	var (
		interactive bool
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a .crediblend.yaml project configuration",
		Long: `Create a .crediblend.yaml in the given directory along with empty
oof/ and sub/ directories for the prediction files.

Use --interactive to answer a short set of questions instead of taking
the defaults.

If no directory is specified, the current directory is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return initCommandE(cmd, args, interactive, force)
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Ask for each setting")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing "+projectconfig.FileName)

	return cmd
}

func initCommandE(cmd *cobra.Command, args []string, interactive, force bool) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	cfgPath := filepath.Join(dir, projectconfig.FileName)
	if !force {
		if _, err := os.Stat(cfgPath); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("checking %s: %w", cfgPath, err)
		}
	}

	answers := wizard.DefaultAnswers()
	if interactive {
		var err error
		if answers, err = wizard.Run(cmd.InOrStdin(), cmd.OutOrStdout(), answers); err != nil {
			return err
		}
	}

	content, err := wizard.GenerateConfig(answers)
	if err != nil {
		return fmt.Errorf("failed to generate %s: %w", projectconfig.FileName, err)
	}
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", cfgPath, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Initialized crediblend project in %s\n", dir) //nolint:errcheck
	fmt.Fprintf(out, "  %s\n", cfgPath)                             //nolint:errcheck

	for _, sub := range []string{answers.OOFDir, answers.SubDir} {
		if sub == "" || filepath.IsAbs(sub) {
			continue
		}
		p := filepath.Join(dir, sub)
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", p, err)
		}
		fmt.Fprintf(out, "  %s%c\n", filepath.Clean(p), filepath.Separator) //nolint:errcheck
	}
	return nil
}
