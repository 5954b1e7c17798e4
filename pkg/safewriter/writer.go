// SPDX-License-Identifier: GPL-3.0-or-later

package safewriter

import (
	"io"
	"os"
	"sync"
)

// Stdout is shared by everything that speaks the plugins.d protocol.
var Stdout = New(os.Stdout)

// New wraps w so that concurrent writes never interleave.
func New(w io.Writer) io.Writer {
	return &writer{w: w}
}

type writer struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *writer) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}
