// SPDX-License-Identifier: GPL-3.0-or-later

package buildinfo

import (
	"fmt"
	"runtime"
)

// Version stores the plugin's version number. It's set during the build process using build flags.
var Version = "v0.0.0"

// StockConfigDir stores the path to the stock (default) configuration directory.
// This value is set during the build process using build flags.
var StockConfigDir = ""

// Info returns a one-line build summary for the startup log.
func Info() string {
	return fmt.Sprintf("version=%s, go=%s, os=%s/%s", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
