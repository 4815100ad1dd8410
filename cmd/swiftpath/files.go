package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sagarc03/swiftpath"
)

var catCmd = &cobra.Command{
	Use:   "cat <path>...",
	Short: "Print object contents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCat,
}

var putCmd = &cobra.Command{
	Use:   "put <local> <path>",
	Short: "Upload a file (\"-\" reads stdin)",
	Long: `Upload a local file to an object.

If <path> is an existing directory the file keeps its base name inside it.
With -r a local directory is uploaded recursively, keeping relative paths.`,
	Args: cobra.ExactArgs(2),
	RunE: runPut,
}

var getCmd = &cobra.Command{
	Use:   "get <path> [local]",
	Short: "Download an object (\"-\" writes stdout)",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runGet,
}

var touchCmd = &cobra.Command{
	Use:   "touch <path>...",
	Short: "Create empty objects or refresh their modification time",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTouch,
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>...",
	Short: "Remove objects",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRm,
}

var statCmd = &cobra.Command{
	Use:   "stat <path>",
	Short: "Show object or directory metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runStat,
}

func init() {
	putCmd.Flags().BoolP("recursive", "r", false, "upload a directory recursively")
	rmCmd.Flags().BoolP("recursive", "r", false, "remove directories and their contents")
	rmCmd.Flags().BoolP("force", "f", false, "ignore missing paths")

	rootCmd.AddCommand(catCmd, putCmd, getCmd, touchCmd, rmCmd, statCmd)
}

func runCat(cmd *cobra.Command, args []string) error {
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
		rc, err := p.Open(ctx)
		if err != nil {
			return err
		}
		_, err = io.Copy(cmd.OutOrStdout(), rc)
		_ = rc.Close()
		if err != nil {
			return fmt.Errorf("cat %s: %w", p, err)
		}
	}
	return nil
}

func runPut(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	recursive, _ := cmd.Flags().GetBool("recursive")

	b, release, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer release()

	dst, err := resolve(b, args[1])
	if err != nil {
		return err
	}

	local := args[0]
	if local == "-" {
		return upload(cmd, cmd.InOrStdin(), dst)
	}

	info, err := os.Stat(local)
	if err != nil {
		return fmt.Errorf("stat local path: %w", err)
	}
	if info.IsDir() {
		if !recursive {
			return fmt.Errorf("%s is a directory (use -r)", local)
		}
		return uploadTree(cmd, local, dst)
	}

	if isDir, err := dst.IsDir(ctx); err != nil {
		return err
	} else if isDir {
		if dst, err = dst.JoinPath(filepath.Base(local)); err != nil {
			return err
		}
	}
	return uploadFile(cmd, local, dst)
}

func uploadTree(cmd *cobra.Command, root string, dst swiftpath.Path) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("calculate relative path: %w", err)
		}
		target, err := dst.JoinPath(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		return uploadFile(cmd, path, target)
	})
}

func uploadFile(cmd *cobra.Command, local string, dst swiftpath.Path) error {
	f, err := os.Open(local) //#nosec G304 -- local is user-provided input
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return upload(cmd, f, dst)
}

func upload(cmd *cobra.Command, r io.Reader, dst swiftpath.Path) error {
	w, err := dst.Create(cmd.Context())
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("upload %s: %w", dst, err)
	}
	if err := w.Close(); err != nil {
		return err
	}
	return getFormatter().FormatDone(cmd.OutOrStdout(), "uploaded", dst.String())
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	b, release, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer release()

	src, err := resolve(b, args[0])
	if err != nil {
		return err
	}

	local := src.Name()
	if len(args) == 2 {
		local = args[1]
	}

	rc, err := src.Open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	if local == "-" {
		_, err = io.Copy(cmd.OutOrStdout(), rc)
		return err
	}

	if dir := filepath.Dir(local); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	f, err := os.Create(local) //#nosec G304 -- local is user-provided input
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	return getFormatter().FormatDone(cmd.OutOrStdout(), "downloaded", src.String()+" -> "+local)
}

func runTouch(cmd *cobra.Command, args []string) error {
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
		if err := p.Touch(ctx); err != nil {
			return err
		}
	}
	return nil
}

func runRm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	recursive, _ := cmd.Flags().GetBool("recursive")
	force, _ := cmd.Flags().GetBool("force")

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

		isDir, err := p.IsDir(ctx)
		if err != nil {
			return err
		}
		switch {
		case isDir && !recursive:
			return fmt.Errorf("rm %s: %w (use -r)", p, swiftpath.ErrIsADirectory)
		case isDir:
			err = p.RemoveAll(ctx)
		default:
			err = p.Unlink(ctx, force)
		}
		if err != nil {
			if force && errors.Is(err, swiftpath.ErrNotFound) {
				continue
			}
			return err
		}
		if err := getFormatter().FormatDone(cmd.OutOrStdout(), "removed", p.String()); err != nil {
			return err
		}
	}
	return nil
}

func runStat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	b, release, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer release()

	p, err := resolve(b, args[0])
	if err != nil {
		return err
	}
	st, err := p.Stat(ctx)
	if err != nil {
		return err
	}
	return getFormatter().FormatStat(cmd.OutOrStdout(), p.String(), st)
}
