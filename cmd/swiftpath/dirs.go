package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sagarc03/swiftpath"
)

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a directory, a container or the containers",
	Long: `List the entries of a directory.

Without a path the containers are listed. With -r the whole tree below the
path is walked and entries are shown relative to it.`,
	Example: `  swiftpath ls
  swiftpath ls /photos/2024
  swiftpath ls -r swift://photos`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLs,
}

var globCmd = &cobra.Command{
	Use:   "glob <dir> <pattern>",
	Short: "Find paths below a directory matching a pattern",
	Example: `  swiftpath glob /logs '*/2024-*.gz'
  swiftpath glob -r /logs '*.gz'`,
	Args: cobra.ExactArgs(2),
	RunE: runGlob,
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>...",
	Short: "Create directories or containers",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMkdir,
}

var rmdirCmd = &cobra.Command{
	Use:   "rmdir <path>...",
	Short: "Remove empty directories or containers",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRmdir,
}

func init() {
	lsCmd.Flags().BoolP("recursive", "r", false, "walk the whole tree")
	globCmd.Flags().BoolP("recursive", "r", false, "match at any depth")
	mkdirCmd.Flags().BoolP("parents", "p", false, "create the container if needed and ignore existing directories")

	rootCmd.AddCommand(lsCmd, globCmd, mkdirCmd, rmdirCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	recursive, _ := cmd.Flags().GetBool("recursive")

	b, release, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer release()

	arg := swiftpath.Separator
	if len(args) == 1 {
		arg = args[0]
	}
	dir, err := resolve(b, arg)
	if err != nil {
		return err
	}

	var entries []swiftpath.DirEntry
	if recursive {
		for e, err := range dir.Walk(ctx) {
			if err != nil {
				return err
			}
			if rel, err := e.Path.RelativeTo(dir.Pure()); err == nil {
				e.Name = rel.String()
			}
			entries = append(entries, e)
		}
	} else {
		for e, err := range dir.ScanDir(ctx) {
			if err != nil {
				return err
			}
			entries = append(entries, e)
		}
	}

	return getFormatter().FormatEntries(cmd.OutOrStdout(), dir.String(), entries)
}

func runGlob(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	recursive, _ := cmd.Flags().GetBool("recursive")

	b, release, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer release()

	dir, err := resolve(b, args[0])
	if err != nil {
		return err
	}

	matches := dir.Glob
	if recursive {
		matches = dir.RGlob
	}

	var paths []swiftpath.Path
	for p, err := range matches(ctx, args[1]) {
		if err != nil {
			return err
		}
		paths = append(paths, p)
	}
	return getFormatter().FormatPaths(cmd.OutOrStdout(), paths)
}

func runMkdir(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	parents, _ := cmd.Flags().GetBool("parents")

	b, release, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer release()

	for _, arg := range args {
		p, err := resolve(b, arg)
		if err != nil {
			return err
		}
		if err := p.Mkdir(ctx, swiftpath.MkdirOptions{Parents: parents, ExistOK: parents}); err != nil {
			return err
		}
		if err := getFormatter().FormatDone(cmd.OutOrStdout(), "created", p.String()); err != nil {
			return err
		}
	}
	return nil
}

func runRmdir(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	b, release, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer release()

	for _, arg := range args {
		p, err := resolve(b, arg)
		if err != nil {
			return err
		}
		if err := p.Rmdir(ctx); err != nil {
			if errors.Is(err, swiftpath.ErrDirectoryNotEmpty) {
				return fmt.Errorf("%w (use rm -r)", err)
			}
			return err
		}
		if err := getFormatter().FormatDone(cmd.OutOrStdout(), "removed", p.String()); err != nil {
			return err
		}
	}
	return nil
}
