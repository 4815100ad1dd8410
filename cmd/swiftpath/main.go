package main

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sagarc03/swiftpath"
	"github.com/sagarc03/swiftpath/config"
	"github.com/sagarc03/swiftpath/connect"
)

var version = "dev"

// skipConfig marks commands that run without a loaded config.
const skipConfig = "skip-config"

var (
	configFiles []string
	jsonOutput  bool
	quiet       bool
)

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "swiftpath",
	Short:   "Filesystem-style access to Swift object storage",
	Long: `swiftpath browses and edits an object store as if it were a file tree.
Containers are top-level directories; "/" in object keys separates
pseudo-directories.

Paths are written /container/dir/file or swift://container/dir/file.
The backend comes from --backend, SWIFTPATH_BACKEND_TYPE, a profile or a
config file; swift credentials are also read from OS_* variables.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringSliceVar(&configFiles, "config", nil, "config file(s), merged in order (default: ./swiftpath.yaml)")
	pf.String("backend", "", "backend: swift, s3, local, memory, remote (env: SWIFTPATH_BACKEND_TYPE)")
	pf.String("profile", "", "profile from the profiles file (env: SWIFTPATH_PROFILE)")
	pf.String("log-level", "", "log level: debug, info, warn, error (env: SWIFTPATH_LOG_LEVEL)")
	pf.BoolVar(&jsonOutput, "json", false, "output as JSON")
	pf.BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	for c := cmd; c != nil; c = c.Parent() {
		if _, ok := c.Annotations[skipConfig]; ok {
			return nil
		}
	}

	cfg, err := config.Load(configFiles, cmd.Flags())
	if err != nil {
		return err
	}

	closer := setupLogging(cfg.Log)
	cobra.OnFinalize(func() { _ = closer.Close() })

	cmd.SetContext(config.WithContext(cmd.Context(), cfg))
	return nil
}

// openBackend builds the configured backend. The caller must call the
// returned release function.
func openBackend(ctx context.Context) (swiftpath.Backend, func(), error) {
	cfg, err := config.FromContext(ctx)
	if err != nil {
		return nil, nil, err
	}
	b, err := connect.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return b, func() { _ = b.Close() }, nil
}

// resolvePure parses a command line path: swift://container/key,
// /container/key or container/key.
func resolvePure(arg string) (swiftpath.PurePath, error) {
	if strings.HasPrefix(arg, swiftpath.URIScheme+"://") {
		return swiftpath.ParseURI(arg)
	}
	if !strings.HasPrefix(arg, swiftpath.Separator) {
		arg = swiftpath.Separator + arg
	}
	return swiftpath.Parse(arg)
}

func resolve(b swiftpath.Backend, arg string) (swiftpath.Path, error) {
	pp, err := resolvePure(arg)
	if err != nil {
		return swiftpath.Path{}, err
	}
	return swiftpath.Bind(b, pp), nil
}

func getFormatter() Formatter {
	return NewFormatter(jsonOutput, quiet)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_ = getFormatter().FormatError(os.Stderr, err)
		os.Exit(1)
	}
}
