package e2e_test

import (
	"bytes"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	binaryPath     string
	binaryBuildErr error
	binaryOnce     sync.Once
	sharedTempDir  string
)

// TestMain sets up and tears down shared test resources.
func TestMain(m *testing.M) {
	var err error
	sharedTempDir, err = os.MkdirTemp("", "swiftpath-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	_ = os.RemoveAll(sharedTempDir)
	os.Exit(code)
}

// AuthKey represents an access key pair for authentication.
type AuthKey struct {
	AccessKey string
	SecretKey string
}

// ServerConfig configures a "swiftpath serve" process over a local backend.
type ServerConfig struct {
	Port      int
	DBType    string // sqlite, postgres
	DBDSN     string
	Tables    string // table name prefix, postgres only
	Root      string
	AuthRead  string    // public, private
	AuthWrite string    // public, private
	AuthKeys  []AuthKey // keys accepted by the private sides
}

// buildBinary compiles swiftpath once per test run.
func buildBinary(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	binaryOnce.Do(func() {
		binaryPath = filepath.Join(sharedTempDir, "swiftpath")

		cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/swiftpath")
		cmd.Dir = getProjectRoot(t)
		output, err := cmd.CombinedOutput()
		if err != nil {
			binaryBuildErr = fmt.Errorf("build binary: %w\nOutput: %s", err, output)
		}
	})

	if binaryBuildErr != nil {
		t.Fatalf("failed to build binary: %v", binaryBuildErr)
	}
	return binaryPath
}

// getProjectRoot walks up to the directory holding go.mod.
func getProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err, "get working directory")

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// createConfigFile writes the server config and returns its path.
func createConfigFile(t *testing.T, cfg ServerConfig) string {
	t.Helper()

	var sb strings.Builder
	fmt.Fprintf(&sb, `backend:
  type: local

local:
  root: "%s"
  database:
    type: %s
    dsn: "%s"
`, cfg.Root, cfg.DBType, cfg.DBDSN)

	if cfg.Tables != "" {
		fmt.Fprintf(&sb, "    tables:\n      containers: %s_containers\n      objects: %s_objects\n", cfg.Tables, cfg.Tables)
	}

	fmt.Fprintf(&sb, `
server:
  port: %d

auth:
  read: %s
  write: %s
`, cfg.Port, cfg.AuthRead, cfg.AuthWrite)

	if len(cfg.AuthKeys) > 0 {
		sb.WriteString("  keys:\n    inline:\n")
		for _, key := range cfg.AuthKeys {
			fmt.Fprintf(&sb, "      - access_key: %s\n        secret_key: %s\n", key.AccessKey, key.SecretKey)
		}
	}

	sb.WriteString("\nlog:\n  level: error\n")

	configPath := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(sb.String()), 0o600), "write config file")
	return configPath
}

// startServer runs "swiftpath serve" and stops it when the test ends.
// Returns the base URL.
func startServer(t *testing.T, cfg ServerConfig) string {
	t.Helper()

	binary := buildBinary(t)

	if cfg.Port == 0 {
		cfg.Port = getOpenPort(t)
	}
	if cfg.Root == "" {
		cfg.Root = filepath.Join(t.TempDir(), "data")
	}
	if cfg.DBType == "" {
		cfg.DBType = "sqlite"
		cfg.DBDSN = filepath.Join(t.TempDir(), "meta.db")
	}
	if cfg.AuthRead == "" {
		cfg.AuthRead = "public"
	}
	if cfg.AuthWrite == "" {
		cfg.AuthWrite = "public"
	}

	cmd := exec.Command(binary, "serve", "--config", createConfigFile(t, cfg))
	cmd.Env = cleanEnv(t)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	require.NoError(t, cmd.Start(), "start server")

	t.Cleanup(func() {
		if cmd.Process != nil {
			_ = cmd.Process.Signal(syscall.SIGTERM)
			_ = cmd.Wait()
		}
	})

	baseURL := fmt.Sprintf("http://localhost:%d", cfg.Port)
	waitForServer(t, baseURL, 10*time.Second)
	return baseURL
}

// Client runs the swiftpath CLI against a gateway with the remote backend.
type Client struct {
	t        *testing.T
	endpoint string
	key      AuthKey
}

func newClient(t *testing.T, endpoint string, key AuthKey) *Client {
	return &Client{t: t, endpoint: endpoint, key: key}
}

// Run executes the CLI with stdin and returns its combined output.
func (c *Client) Run(stdin string, args ...string) (string, error) {
	c.t.Helper()

	cmd := exec.Command(buildBinary(c.t), args...)
	cmd.Dir = c.t.TempDir()
	cmd.Env = append(cleanEnv(c.t),
		"SWIFTPATH_BACKEND_TYPE=remote",
		"SWIFTPATH_REMOTE_ENDPOINT="+c.endpoint,
		"SWIFTPATH_REMOTE_ACCESS_KEY="+c.key.AccessKey,
		"SWIFTPATH_REMOTE_SECRET_KEY="+c.key.SecretKey,
		"SWIFTPATH_LOG_LEVEL=error",
	)
	cmd.Stdin = strings.NewReader(stdin)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.String(), err
}

// MustRun is Run that fails the test on a non-zero exit.
func (c *Client) MustRun(stdin string, args ...string) string {
	c.t.Helper()

	out, err := c.Run(stdin, args...)
	require.NoError(c.t, err, "swiftpath %v: %s", args, out)
	return out
}

// cleanEnv keeps the host environment minus any swiftpath or OpenStack
// settings, with HOME moved to a temp dir so no profile is picked up.
func cleanEnv(t *testing.T) []string {
	t.Helper()

	var env []string
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "SWIFTPATH_") || strings.HasPrefix(kv, "OS_") || strings.HasPrefix(kv, "HOME=") {
			continue
		}
		env = append(env, kv)
	}
	return append(env, "HOME="+t.TempDir())
}

// waitForServer polls the server until it responds or times out.
func waitForServer(t *testing.T, baseURL string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 1 * time.Second}

	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/")
		if err == nil {
			_ = resp.Body.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}

	t.Fatalf("server failed to start within %v", timeout)
}

// getOpenPort finds an available TCP port.
func getOpenPort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err, "find open port")

	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close(), "close port")
	return port
}
