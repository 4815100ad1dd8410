package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Errors for profile operations.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoProfiles      = errors.New("no profiles configured")
	ErrProfileExists   = errors.New("profile already exists")
)

// Profile is a named set of backend settings written by `swiftpath
// configure`. Only the fields of its Backend are used.
type Profile struct {
	Name    string `yaml:"name"`
	Backend string `yaml:"backend"`
	Default bool   `yaml:"default,omitempty"`

	// swift
	AuthURL  string `yaml:"auth_url,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Project  string `yaml:"project,omitempty"`
	Region   string `yaml:"region,omitempty"`

	// s3 and remote
	Endpoint  string `yaml:"endpoint,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`

	// local
	Root string `yaml:"root,omitempty"`
}

// Settings returns the profile as viper keys.
func (p *Profile) Settings() map[string]any {
	out := map[string]any{"backend.type": p.Backend}
	set := func(key, val string) {
		if val != "" {
			out[key] = val
		}
	}

	switch p.Backend {
	case BackendSwift:
		set("swift.auth_url", p.AuthURL)
		set("swift.username", p.Username)
		set("swift.password", p.Password)
		set("swift.project_name", p.Project)
		set("swift.region_name", p.Region)
	case BackendS3:
		set("s3.endpoint", p.Endpoint)
		set("s3.access_key", p.AccessKey)
		set("s3.secret_key", p.SecretKey)
		set("s3.region", p.Region)
	case BackendRemote:
		set("remote.endpoint", p.Endpoint)
		set("remote.access_key", p.AccessKey)
		set("remote.secret_key", p.SecretKey)
	case BackendLocal:
		set("local.root", p.Root)
	}
	return out
}

// ProfileFile holds the full profiles file with multiple profiles.
type ProfileFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// GetProfile returns the profile by name.
// If name is empty, returns the default profile.
func (c *ProfileFile) GetProfile(name string) (*Profile, error) {
	if len(c.Profiles) == 0 {
		return nil, ErrNoProfiles
	}

	if name == "" {
		return c.GetDefaultProfile()
	}

	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			return &c.Profiles[i], nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// GetDefaultProfile returns the default profile.
// If no profile is marked as default, returns the first profile.
func (c *ProfileFile) GetDefaultProfile() (*Profile, error) {
	if len(c.Profiles) == 0 {
		return nil, ErrNoProfiles
	}

	for i := range c.Profiles {
		if c.Profiles[i].Default {
			return &c.Profiles[i], nil
		}
	}

	return &c.Profiles[0], nil
}

// HasDefault reports whether a profile is marked as default.
func (c *ProfileFile) HasDefault() bool {
	for i := range c.Profiles {
		if c.Profiles[i].Default {
			return true
		}
	}
	return false
}

// AddProfile adds a new profile. Returns ErrProfileExists if a profile
// with the same name already exists. Use UpdateProfile to modify an existing profile.
func (c *ProfileFile) AddProfile(p Profile) error {
	for i := range c.Profiles {
		if c.Profiles[i].Name == p.Name {
			return fmt.Errorf("%w: %s", ErrProfileExists, p.Name)
		}
	}
	c.Profiles = append(c.Profiles, p)
	return nil
}

// UpdateProfile updates an existing profile. Returns ErrProfileNotFound
// if the profile doesn't exist. Use AddProfile to create a new profile.
func (c *ProfileFile) UpdateProfile(p Profile) error {
	for i := range c.Profiles {
		if c.Profiles[i].Name == p.Name {
			c.Profiles[i] = p
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrProfileNotFound, p.Name)
}

// RemoveProfile removes a profile by name.
func (c *ProfileFile) RemoveProfile(name string) error {
	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			c.Profiles = append(c.Profiles[:i], c.Profiles[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// SetDefault sets the default profile by name.
// Clears the default flag from all other profiles.
func (c *ProfileFile) SetDefault(name string) error {
	found := false
	for i := range c.Profiles {
		c.Profiles[i].Default = c.Profiles[i].Name == name
		found = found || c.Profiles[i].Default
	}

	if !found {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return nil
}

func (c *ProfileFile) ProfileNames() []string {
	names := make([]string, len(c.Profiles))
	for i := range c.Profiles {
		names[i] = c.Profiles[i].Name
	}
	return names
}

// Save writes the profiles to path with owner-only permissions, creating
// the parent directory if needed.
func (c *ProfileFile) Save(path string) error {
	cleanPath := filepath.Clean(path)

	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal profiles: %w", err)
	}

	if err := os.WriteFile(cleanPath, data, 0o600); err != nil {
		return fmt.Errorf("write profiles file: %w", err)
	}

	return nil
}

// LoadProfiles loads the profiles file from path.
func LoadProfiles(path string) (*ProfileFile, error) {
	data, err := os.ReadFile(filepath.Clean(path)) //#nosec G304 -- path is user-provided config file
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}

	var file ProfileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse profiles file: %w", err)
	}

	return &file, nil
}

// DefaultProfilesPath returns ~/.swiftpath/profiles.yaml, or "" when the
// home directory is unknown.
func DefaultProfilesPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".swiftpath", "profiles.yaml")
}
