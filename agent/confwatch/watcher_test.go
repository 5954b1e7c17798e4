// SPDX-License-Identifier: GPL-3.0-or-later

package confwatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

type testConfig struct {
	UpdateEvery int      `yaml:"update_every"`
	Worlds      []string `yaml:"worlds"`
}

func loadTestConfig(path string) (any, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg testConfig
	if err := yaml.Unmarshal(bs, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func TestWatcher_Run(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.d.conf")
	require.NoError(t, os.WriteFile(path, []byte("update_every: 1\nworlds: [a]\n"), 0644))

	w := New(path, loadTestConfig)
	w.settle = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	changed := make(chan struct{})
	done := make(chan struct{})
	go func() { defer close(done); w.Run(ctx, changed) }()
	defer func() { cancel(); <-done }()

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)

	// same values, different formatting
	writeFile(t, path, "# comment\nupdate_every: 1\nworlds:\n  - a\n")
	select {
	case <-changed:
		t.Fatal("formatting-only change reported")
	case <-time.After(500 * time.Millisecond):
	}

	writeFile(t, path, "update_every: 5\nworlds: [a]\n")
	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("change not reported")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0644))
	require.NoError(t, os.Rename(tmp, path))
}

func TestWatcher_currentHash(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.conf")
	b := filepath.Join(dir, "b.conf")
	require.NoError(t, os.WriteFile(a, []byte("update_every: 2\n"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("update_every: 2 # same\n"), 0644))

	ha, err := New(a, loadTestConfig).currentHash()
	require.NoError(t, err)
	hb, err := New(b, loadTestConfig).currentHash()
	require.NoError(t, err)
	assert.Equal(t, ha, hb)

	_, err = New(filepath.Join(dir, "missing.conf"), loadTestConfig).currentHash()
	assert.Error(t, err)
}
