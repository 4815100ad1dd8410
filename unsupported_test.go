package swiftpath_test

import (
	"context"
	"testing"

	"github.com/sagarc03/swiftpath"
	"github.com/stretchr/testify/assert"
)

func TestUnsupportedOperations(t *testing.T) {
	p := newPath(t, fixture(t, "a"), "/bucket/a")

	calls := map[string]func() error{
		"cwd":             func() error { _, err := swiftpath.Cwd(); return err },
		"home":            func() error { _, err := swiftpath.Home(); return err },
		"chmod":           func() error { return p.Chmod(0o644) },
		"lchmod":          func() error { return p.Lchmod(0o644) },
		"expanduser":      func() error { _, err := p.ExpandUser(); return err },
		"owner":           func() error { _, err := p.Owner(); return err },
		"group":           func() error { _, err := p.Group(); return err },
		"is block device": func() error { _, err := p.IsBlockDevice(); return err },
		"is char device":  func() error { _, err := p.IsCharDevice(); return err },
		"is fifo":         func() error { _, err := p.IsFIFO(); return err },
		"is socket":       func() error { _, err := p.IsSocket(); return err },
		"is mount":        func() error { _, err := p.IsMount(); return err },
		"lstat":           func() error { _, err := p.Lstat(context.Background()); return err },
		"resolve":         func() error { _, err := p.Resolve(); return err },
	}

	for op, call := range calls {
		t.Run(op, func(t *testing.T) {
			err := call()
			assert.ErrorIs(t, err, swiftpath.ErrUnsupported)

			var pe *swiftpath.PathError
			if assert.ErrorAs(t, err, &pe) {
				assert.Equal(t, op, pe.Op)
			}
		})
	}
}
