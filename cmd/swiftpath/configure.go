package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/sagarc03/swiftpath/config"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Manage connection profiles",
	Long: `Manage connection profiles.

A profile saves the backend and credentials for one object store. Select it
with --profile or SWIFTPATH_PROFILE; without either the default profile is
used. Config files, environment variables and flags still override it.

Profiles are stored in ~/.swiftpath/profiles.yaml.`,
	Annotations: map[string]string{skipConfig: ""},
}

var configureListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configured profiles",
	Long: `List all configured profiles.

The default profile is marked with an asterisk (*).`,
	RunE: runConfigureList,
}

var configureAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or update a profile interactively",
	Long: `Add a profile interactively.

You are asked for the backend, then for the settings it needs. Endpoints
are probed before saving.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigureAdd,
}

var configureRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a profile",
	Args:    cobra.ExactArgs(1),
	RunE:    runConfigureRemove,
}

var configureSetDefaultCmd = &cobra.Command{
	Use:   "set-default <name>",
	Short: "Set the default profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigureSetDefault,
}

var configureShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show profile details",
	Long: `Show details for a profile.

If no name is provided, shows the default profile.
Secrets are hidden unless --show-secrets is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigureShow,
}

var (
	showSecrets  bool
	profilesFile string
)

func init() {
	configureCmd.PersistentFlags().StringVar(&profilesFile, "profiles-file", "", "profiles file (default: ~/.swiftpath/profiles.yaml)")
	configureShowCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "show secret values")
	configureListCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "show secret values")

	configureCmd.AddCommand(configureListCmd, configureAddCmd, configureRemoveCmd, configureSetDefaultCmd, configureShowCmd)
	rootCmd.AddCommand(configureCmd)
}

func getProfilesPath() string {
	if profilesFile != "" {
		return profilesFile
	}
	if env := os.Getenv(config.EnvPrefix + "_PROFILES_FILE"); env != "" {
		return env
	}
	return config.DefaultProfilesPath()
}

func loadProfilesOrEmpty(path string) (*config.ProfileFile, error) {
	pf, err := config.LoadProfiles(path)
	if errors.Is(err, os.ErrNotExist) {
		return &config.ProfileFile{}, nil
	}
	return pf, err
}

func runConfigureList(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	pf, err := loadProfilesOrEmpty(getProfilesPath())
	if err != nil {
		return err
	}

	if len(pf.Profiles) == 0 {
		_, _ = fmt.Fprintln(out, "No profiles configured.")
		_, _ = fmt.Fprintln(out, "Run 'swiftpath configure add <name>' to create one.")
		return nil
	}

	def, err := pf.GetDefaultProfile()
	if err != nil {
		return err
	}
	return getFormatter().FormatProfileList(out, pf.Profiles, def.Name, showSecrets)
}

func runConfigureAdd(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	name := args[0]
	path := getProfilesPath()

	pf, err := loadProfilesOrEmpty(path)
	if err != nil {
		return err
	}

	existing, _ := pf.GetProfile(name)
	if existing != nil {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Profile '%s' already exists. Update it", name),
			IsConfirm: true,
		}
		if _, promptErr := prompt.Run(); promptErr != nil {
			_, _ = fmt.Fprintln(out, "Cancelled.")
			return nil //nolint:nilerr // User cancelled, not an error
		}
	}

	backendPrompt := promptui.Select{
		Label: "Backend",
		Items: []string{config.BackendSwift, config.BackendS3, config.BackendRemote, config.BackendLocal, config.BackendMemory},
	}
	_, backend, err := backendPrompt.Run()
	if err != nil {
		return handlePromptError(out, err)
	}

	p := config.Profile{Name: name, Backend: backend}
	if existing != nil {
		p.Default = existing.Default
	}

	if err := promptBackendSettings(&p); err != nil {
		return handlePromptError(out, err)
	}

	setAsDefault := len(pf.Profiles) == 0 || (existing != nil && existing.Default)
	if !setAsDefault {
		defaultPrompt := promptui.Prompt{
			Label:     "Set as default profile",
			IsConfirm: true,
		}
		if _, promptErr := defaultPrompt.Run(); promptErr == nil {
			setAsDefault = true
		}
	}

	if probe := probeURL(&p); probe != "" {
		_, _ = fmt.Fprint(out, "Testing connection... ")
		if connErr := testServerConnection(cmd.Context(), probe); connErr != nil {
			_, _ = fmt.Fprintln(out, "FAILED")
			_, _ = fmt.Fprintf(out, "Warning: Could not connect to server: %v\n", connErr)

			continuePrompt := promptui.Prompt{
				Label:     "Save profile anyway",
				IsConfirm: true,
			}
			if _, promptErr := continuePrompt.Run(); promptErr != nil {
				_, _ = fmt.Fprintln(out, "Cancelled.")
				return nil //nolint:nilerr // User cancelled, not an error
			}
		} else {
			_, _ = fmt.Fprintln(out, "OK")
		}
	}

	if existing != nil {
		err = pf.UpdateProfile(p)
	} else {
		err = pf.AddProfile(p)
	}
	if err != nil {
		return err
	}
	if setAsDefault {
		if err := pf.SetDefault(name); err != nil {
			return err
		}
	}

	if err := pf.Save(path); err != nil {
		return err
	}

	if existing != nil {
		_, _ = fmt.Fprintf(out, "Profile '%s' updated.\n", name)
	} else {
		_, _ = fmt.Fprintf(out, "Profile '%s' added.\n", name)
	}
	if setAsDefault {
		_, _ = fmt.Fprintln(out, "Set as default profile.")
	}
	return nil
}

// promptBackendSettings asks for the fields the profile's backend uses.
func promptBackendSettings(p *config.Profile) error {
	var err error
	switch p.Backend {
	case config.BackendSwift:
		if p.AuthURL, err = promptURL("Auth URL (Keystone)", ""); err != nil {
			return err
		}
		if p.Username, err = promptText("Username", false); err != nil {
			return err
		}
		if p.Password, err = promptText("Password", true); err != nil {
			return err
		}
		if p.Project, err = promptText("Project", false); err != nil {
			return err
		}
		p.Region, err = promptText("Region", false)
	case config.BackendS3:
		if p.Endpoint, err = promptText("Endpoint (host:port)", false); err != nil {
			return err
		}
		if p.AccessKey, err = promptText("Access Key", false); err != nil {
			return err
		}
		if p.SecretKey, err = promptText("Secret Key", true); err != nil {
			return err
		}
		p.Region, err = promptText("Region", false)
	case config.BackendRemote:
		if p.Endpoint, err = promptURL("Gateway URL", "http://localhost:5708"); err != nil {
			return err
		}
		if p.AccessKey, err = promptText("Access Key", false); err != nil {
			return err
		}
		p.SecretKey, err = promptText("Secret Key", true)
	case config.BackendLocal:
		p.Root, err = promptText("Root directory", false)
	}
	return err
}

func promptText(label string, secret bool) (string, error) {
	prompt := promptui.Prompt{Label: label}
	if secret {
		prompt.Mask = '*'
	}
	v, err := prompt.Run()
	return strings.TrimSpace(v), err
}

func promptURL(label, def string) (string, error) {
	prompt := promptui.Prompt{
		Label:    label,
		Default:  def,
		Validate: validateURL,
	}
	v, err := prompt.Run()
	return strings.TrimSuffix(strings.TrimSpace(v), "/"), err
}

func validateURL(input string) error {
	if input == "" {
		return errors.New("URL is required")
	}
	parsedURL, err := url.Parse(input)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.New("URL must start with http:// or https://")
	}
	return nil
}

// probeURL is the URL checked for reachability, or "" when the backend has
// nothing to probe.
func probeURL(p *config.Profile) string {
	switch p.Backend {
	case config.BackendSwift:
		return p.AuthURL
	case config.BackendRemote:
		return p.Endpoint
	case config.BackendS3:
		if p.Endpoint == "" {
			return ""
		}
		if strings.Contains(p.Endpoint, "://") {
			return p.Endpoint
		}
		return "https://" + p.Endpoint
	default:
		return ""
	}
}

func runConfigureRemove(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	name := args[0]
	path := getProfilesPath()

	pf, err := config.LoadProfiles(path)
	if err != nil {
		return err
	}
	if _, err := pf.GetProfile(name); err != nil {
		return err
	}

	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("Remove profile '%s'", name),
		IsConfirm: true,
	}
	if _, promptErr := prompt.Run(); promptErr != nil {
		_, _ = fmt.Fprintln(out, "Cancelled.")
		return nil //nolint:nilerr // User cancelled, not an error
	}

	if err := pf.RemoveProfile(name); err != nil {
		return err
	}
	if err := pf.Save(path); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "Profile '%s' removed.\n", name)
	return nil
}

func runConfigureSetDefault(cmd *cobra.Command, args []string) error {
	name := args[0]
	path := getProfilesPath()

	pf, err := config.LoadProfiles(path)
	if err != nil {
		return err
	}
	if err := pf.SetDefault(name); err != nil {
		return err
	}
	if err := pf.Save(path); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Default profile set to '%s'.\n", name)
	return nil
}

func runConfigureShow(cmd *cobra.Command, args []string) error {
	pf, err := config.LoadProfiles(getProfilesPath())
	if err != nil {
		return err
	}

	name := ""
	if len(args) > 0 {
		name = args[0]
	}

	p, err := pf.GetProfile(name)
	if err != nil {
		return err
	}

	isDefault := p.Default || name == ""
	return getFormatter().FormatProfileShow(cmd.OutOrStdout(), *p, isDefault, showSecrets)
}

// testServerConnection treats any HTTP response as reachable; 401 and 404
// still mean the server is up.
func testServerConnection(ctx context.Context, endpointURL string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

func handlePromptError(w io.Writer, err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) {
		_, _ = fmt.Fprintln(w, "Cancelled.")
		return nil
	}
	return err
}
