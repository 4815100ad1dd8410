package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sagarc03/swiftpath"
)

var mvCmd = &cobra.Command{
	Use:   "mv <src> <dst>",
	Short: "Rename a file or directory",
	Long: `Rename moves an object or a whole directory tree.

Object stores have no atomic rename: the objects are copied, then the
sources deleted. When some deletes fail the sources that remain are
reported and the copies are kept.`,
	Args: cobra.ExactArgs(2),
	RunE: runMv,
}

var cpCmd = &cobra.Command{
	Use:   "cp <src> <dst>",
	Short: "Copy a file or directory server side",
	Args:  cobra.ExactArgs(2),
	RunE:  runCp,
}

var lnCmd = &cobra.Command{
	Use:   "ln -s <target> <link>",
	Short: "Create a symbolic link object",
	Args:  cobra.ExactArgs(2),
	RunE:  runLn,
}

func init() {
	mvCmd.Flags().BoolP("force", "f", false, "overwrite an existing destination")
	lnCmd.Flags().BoolP("symbolic", "s", false, "create a symbolic link (the only kind supported)")
	lnCmd.Flags().String("account", "", "account the target lives in")

	rootCmd.AddCommand(mvCmd, cpCmd, lnCmd)
}

func runMv(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	force, _ := cmd.Flags().GetBool("force")

	b, release, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer release()

	src, err := resolve(b, args[0])
	if err != nil {
		return err
	}
	dst, err := resolvePure(args[1])
	if err != nil {
		return err
	}

	move := src.Rename
	if force {
		move = src.Replace
	}
	moved, err := move(ctx, dst)
	if err != nil {
		var partial *swiftpath.PartialRenameError
		if errors.As(err, &partial) {
			reportLeftovers(cmd.ErrOrStderr(), partial)
		}
		return err
	}
	return getFormatter().FormatDone(cmd.OutOrStdout(), "moved", src.String()+" -> "+moved.String())
}

func reportLeftovers(w io.Writer, partial *swiftpath.PartialRenameError) {
	if quiet {
		return
	}
	for _, key := range partial.Remaining {
		_, _ = fmt.Fprintf(w, "not removed: %s\n", key)
	}
}

func runCp(cmd *cobra.Command, args []string) error {
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
	dst, err := resolvePure(args[1])
	if err != nil {
		return err
	}

	copied, err := src.CopyTo(ctx, dst)
	if err != nil {
		return err
	}
	return getFormatter().FormatDone(cmd.OutOrStdout(), "copied", src.String()+" -> "+copied.String())
}

func runLn(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	symbolic, _ := cmd.Flags().GetBool("symbolic")
	account, _ := cmd.Flags().GetString("account")
	if !symbolic {
		return fmt.Errorf("hard links: %w (use -s)", swiftpath.ErrUnsupported)
	}

	b, release, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer release()

	target, err := resolvePure(args[0])
	if err != nil {
		return err
	}
	link, err := resolve(b, args[1])
	if err != nil {
		return err
	}

	if err := link.SymlinkTo(ctx, target, swiftpath.SymlinkOptions{TargetAccount: account}); err != nil {
		return err
	}
	return getFormatter().FormatDone(cmd.OutOrStdout(), "linked", link.String()+" -> "+target.String())
}
