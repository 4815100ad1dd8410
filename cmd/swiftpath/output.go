package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sagarc03/swiftpath"
	"github.com/sagarc03/swiftpath/config"
)

// Formatter formats results for output.
type Formatter interface {
	FormatEntries(w io.Writer, dir string, entries []swiftpath.DirEntry) error
	FormatPaths(w io.Writer, paths []swiftpath.Path) error
	FormatStat(w io.Writer, path string, st swiftpath.StatResult) error
	// FormatDone reports a completed mutation such as "removed /c/k".
	FormatDone(w io.Writer, action, path string) error
	FormatError(w io.Writer, err error) error
	FormatProfileList(w io.Writer, profiles []config.Profile, defaultName string, showSecrets bool) error
	FormatProfileShow(w io.Writer, profile config.Profile, isDefault, showSecrets bool) error
}

// NewFormatter returns the appropriate formatter based on flags.
func NewFormatter(jsonOutput, quiet bool) Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &HumanFormatter{Quiet: quiet}
}

// HumanFormatter outputs human-readable text.
type HumanFormatter struct {
	Quiet bool
}

func entryName(e swiftpath.DirEntry) string {
	switch {
	case e.IsDir:
		return e.Name + "/"
	case e.IsSymlink:
		return e.Name + "@"
	default:
		return e.Name
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func (f *HumanFormatter) FormatEntries(w io.Writer, dir string, entries []swiftpath.DirEntry) error {
	if len(entries) == 0 {
		if !f.Quiet {
			_, _ = fmt.Fprintf(w, "%s is empty\n", dir)
		}
		return nil
	}

	maxNameLen := 4 // "NAME"
	for i := range entries {
		maxNameLen = max(maxNameLen, len(entryName(entries[i])))
	}
	maxNameLen = min(maxNameLen, 60)

	if !f.Quiet {
		_, _ = fmt.Fprintf(w, "%-*s  %10s  %s\n", maxNameLen, "NAME", "SIZE", "MODIFIED")
		_, _ = fmt.Fprintf(w, "%s  %s  %s\n", strings.Repeat("-", maxNameLen), strings.Repeat("-", 10), strings.Repeat("-", 19))
	}

	var total int64
	for i := range entries {
		e := &entries[i]
		name := entryName(*e)
		if len(name) > maxNameLen {
			name = name[:maxNameLen-3] + "..."
		}
		size := "-"
		if !e.IsDir {
			size = formatSize(e.Size)
			total += e.Size
		}
		_, _ = fmt.Fprintf(w, "%-*s  %10s  %s\n", maxNameLen, name, size, formatTime(e.ModTime))
	}

	if !f.Quiet {
		_, _ = fmt.Fprintf(w, "\n%d entr%s (%s total)\n", len(entries), plural(len(entries), "y", "ies"), formatSize(total))
	}
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func (f *HumanFormatter) FormatPaths(w io.Writer, paths []swiftpath.Path) error {
	for _, p := range paths {
		_, _ = fmt.Fprintln(w, p.String())
	}
	return nil
}

func (f *HumanFormatter) FormatStat(w io.Writer, path string, st swiftpath.StatResult) error {
	kind := "object"
	switch {
	case st.IsDir:
		kind = "directory"
	case st.IsSymlink:
		kind = "symlink"
	}

	_, _ = fmt.Fprintf(w, "Path:         %s\n", path)
	_, _ = fmt.Fprintf(w, "Type:         %s\n", kind)
	if !st.IsDir {
		_, _ = fmt.Fprintf(w, "Size:         %s (%d bytes)\n", formatSize(st.Size), st.Size)
		_, _ = fmt.Fprintf(w, "Content-Type: %s\n", st.ContentType)
		_, _ = fmt.Fprintf(w, "ETag:         %s\n", st.Hash)
	}
	_, _ = fmt.Fprintf(w, "Modified:     %s\n", formatTime(st.ModTime))
	if st.SymlinkTarget != "" {
		_, _ = fmt.Fprintf(w, "Target:       %s\n", st.SymlinkTarget)
	}
	if st.SymlinkAccount != "" {
		_, _ = fmt.Fprintf(w, "Account:      %s\n", st.SymlinkAccount)
	}
	return nil
}

func (f *HumanFormatter) FormatDone(w io.Writer, action, path string) error {
	if !f.Quiet {
		_, _ = fmt.Fprintf(w, "%s: %s\n", action, path)
	}
	return nil
}

// FormatError formats an error as human-readable text.
func (f *HumanFormatter) FormatError(w io.Writer, err error) error {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return nil
}

// profileLocation is what the profile points at, for listings.
func profileLocation(p *config.Profile) string {
	switch p.Backend {
	case config.BackendSwift:
		return p.AuthURL
	case config.BackendLocal:
		return p.Root
	default:
		return p.Endpoint
	}
}

// FormatProfileList formats a list of profiles as human-readable text.
func (f *HumanFormatter) FormatProfileList(w io.Writer, profiles []config.Profile, defaultName string, showSecrets bool) error {
	maxNameLen := 4 // "NAME"
	maxLocLen := 8  // "LOCATION"
	for i := range profiles {
		maxNameLen = max(maxNameLen, len(profiles[i].Name))
		maxLocLen = max(maxLocLen, len(profileLocation(&profiles[i])))
	}
	maxNameLen = min(maxNameLen, 20)
	maxLocLen = min(maxLocLen, 50)

	_, _ = fmt.Fprintf(w, "  %-*s  %-7s  %-*s  %s\n", maxNameLen, "NAME", "BACKEND", maxLocLen, "LOCATION", "USER / ACCESS KEY")
	_, _ = fmt.Fprintf(w, "  %s  %s  %s  %s\n", strings.Repeat("-", maxNameLen), strings.Repeat("-", 7), strings.Repeat("-", maxLocLen), strings.Repeat("-", 20))

	for i := range profiles {
		p := &profiles[i]
		marker := " "
		if p.Name == defaultName {
			marker = "*"
		}

		name := p.Name
		if len(name) > maxNameLen {
			name = name[:maxNameLen-3] + "..."
		}
		loc := profileLocation(p)
		if len(loc) > maxLocLen {
			loc = loc[:maxLocLen-3] + "..."
		}

		who := p.Username
		if who == "" {
			who = maskSecret(p.AccessKey, showSecrets)
		}

		_, _ = fmt.Fprintf(w, "%s %-*s  %-7s  %-*s  %s\n", marker, maxNameLen, name, p.Backend, maxLocLen, loc, who)
	}

	return nil
}

// FormatProfileShow formats a single profile as human-readable text.
func (f *HumanFormatter) FormatProfileShow(w io.Writer, p config.Profile, isDefault, showSecrets bool) error {
	_, _ = fmt.Fprintf(w, "Name:       %s", p.Name)
	if isDefault {
		_, _ = fmt.Fprintf(w, " (default)")
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Backend:    %s\n", p.Backend)

	switch p.Backend {
	case config.BackendSwift:
		_, _ = fmt.Fprintf(w, "Auth URL:   %s\n", p.AuthURL)
		_, _ = fmt.Fprintf(w, "Username:   %s\n", p.Username)
		_, _ = fmt.Fprintf(w, "Password:   %s\n", maskSecret(p.Password, showSecrets))
		_, _ = fmt.Fprintf(w, "Project:    %s\n", p.Project)
		_, _ = fmt.Fprintf(w, "Region:     %s\n", p.Region)
	case config.BackendLocal:
		_, _ = fmt.Fprintf(w, "Root:       %s\n", p.Root)
	case config.BackendS3, config.BackendRemote:
		_, _ = fmt.Fprintf(w, "Endpoint:   %s\n", p.Endpoint)
		_, _ = fmt.Fprintf(w, "Access Key: %s\n", maskSecret(p.AccessKey, showSecrets))
		_, _ = fmt.Fprintf(w, "Secret Key: %s\n", maskSecret(p.SecretKey, showSecrets))
	}
	return nil
}

// JSONFormatter outputs JSON.
type JSONFormatter struct{}

type jsonEntry struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	IsDir     bool      `json:"is_dir"`
	IsSymlink bool      `json:"is_symlink,omitempty"`
	Size      int64     `json:"size_bytes"`
	Hash      string    `json:"etag,omitempty"`
	ModTime   time.Time `json:"modified,omitzero"`
}

func (f *JSONFormatter) FormatEntries(w io.Writer, dir string, entries []swiftpath.DirEntry) error {
	out := struct {
		Dir     string      `json:"dir"`
		Entries []jsonEntry `json:"entries"`
	}{Dir: dir, Entries: make([]jsonEntry, len(entries))}

	for i := range entries {
		e := &entries[i]
		out.Entries[i] = jsonEntry{
			Path:      e.Path.String(),
			Name:      e.Name,
			IsDir:     e.IsDir,
			IsSymlink: e.IsSymlink,
			Size:      e.Size,
			Hash:      e.Hash,
			ModTime:   e.ModTime,
		}
	}
	return writeJSON(w, out)
}

func (f *JSONFormatter) FormatPaths(w io.Writer, paths []swiftpath.Path) error {
	out := struct {
		Paths []string `json:"paths"`
	}{Paths: make([]string, len(paths))}
	for i, p := range paths {
		out.Paths[i] = p.String()
	}
	return writeJSON(w, out)
}

func (f *JSONFormatter) FormatStat(w io.Writer, path string, st swiftpath.StatResult) error {
	return writeJSON(w, struct {
		Path           string    `json:"path"`
		IsDir          bool      `json:"is_dir"`
		IsSymlink      bool      `json:"is_symlink"`
		SymlinkTarget  string    `json:"symlink_target,omitempty"`
		SymlinkAccount string    `json:"symlink_account,omitempty"`
		Size           int64     `json:"size_bytes"`
		ContentType    string    `json:"content_type,omitempty"`
		Hash           string    `json:"etag,omitempty"`
		ModTime        time.Time `json:"modified,omitzero"`
	}{
		Path:           path,
		IsDir:          st.IsDir,
		IsSymlink:      st.IsSymlink,
		SymlinkTarget:  st.SymlinkTarget,
		SymlinkAccount: st.SymlinkAccount,
		Size:           st.Size,
		ContentType:    st.ContentType,
		Hash:           st.Hash,
		ModTime:        st.ModTime,
	})
}

func (f *JSONFormatter) FormatDone(w io.Writer, action, path string) error {
	return writeJSON(w, struct {
		Action string `json:"action"`
		Path   string `json:"path"`
	}{Action: action, Path: path})
}

// FormatError formats an error as JSON.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	return writeJSON(w, struct {
		Error string `json:"error"`
	}{Error: err.Error()})
}

type jsonProfile struct {
	Name      string `json:"name"`
	Backend   string `json:"backend"`
	Location  string `json:"location,omitempty"`
	Username  string `json:"username,omitempty"`
	Password  string `json:"password,omitempty"`
	Project   string `json:"project,omitempty"`
	Region    string `json:"region,omitempty"`
	AccessKey string `json:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty"`
	Default   bool   `json:"default"`
}

func newJSONProfile(p *config.Profile, isDefault, showSecrets bool) jsonProfile {
	jp := jsonProfile{
		Name:     p.Name,
		Backend:  p.Backend,
		Location: profileLocation(p),
		Username: p.Username,
		Project:  p.Project,
		Region:   p.Region,
		Default:  isDefault,
	}
	if p.Password != "" {
		jp.Password = maskSecret(p.Password, showSecrets)
	}
	if p.AccessKey != "" {
		jp.AccessKey = maskSecret(p.AccessKey, showSecrets)
	}
	if p.SecretKey != "" {
		jp.SecretKey = maskSecret(p.SecretKey, showSecrets)
	}
	return jp
}

// FormatProfileList formats a list of profiles as JSON.
func (f *JSONFormatter) FormatProfileList(w io.Writer, profiles []config.Profile, defaultName string, showSecrets bool) error {
	output := struct {
		Profiles []jsonProfile `json:"profiles"`
	}{
		Profiles: make([]jsonProfile, len(profiles)),
	}
	for i := range profiles {
		output.Profiles[i] = newJSONProfile(&profiles[i], profiles[i].Name == defaultName, showSecrets)
	}
	return writeJSON(w, output)
}

// FormatProfileShow formats a single profile as JSON.
func (f *JSONFormatter) FormatProfileShow(w io.Writer, p config.Profile, isDefault, showSecrets bool) error {
	return writeJSON(w, newJSONProfile(&p, isDefault, showSecrets))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/TB)
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// maskSecret masks a secret string, showing only first 4 and last 4 characters.
// If showSecrets is true, returns the original value.
// If the secret is too short, returns all asterisks.
func maskSecret(secret string, showSecrets bool) string {
	if showSecrets {
		return secret
	}
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 8 {
		return "********"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
