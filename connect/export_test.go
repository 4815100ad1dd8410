package connect

import "github.com/sagarc03/swiftpath/config"

// SetLoader replaces the config loader used by Default and returns a
// function restoring the previous one.
func SetLoader(fn func() (*config.Config, error)) func() {
	mu.Lock()
	defer mu.Unlock()

	prev := loadConfig
	loadConfig = fn
	return func() {
		mu.Lock()
		defer mu.Unlock()
		loadConfig = prev
	}
}
