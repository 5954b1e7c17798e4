// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/netdata/netdata/go/world.d.plugin/agent"
	"github.com/netdata/netdata/go/world.d.plugin/cli"
	"github.com/netdata/netdata/go/world.d.plugin/logger"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/buildinfo"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/executable"
)

func init() {
	// https://github.com/netdata/netdata/issues/8949#issuecomment-638294959
	if v := os.Getenv("TZ"); strings.HasPrefix(v, ":") {
		_ = os.Unsetenv("TZ")
	}
}

func main() {
	_, _ = maxprocs.Set(maxprocs.Logger(func(s string, args ...any) {}))

	opts := parseCLI()

	if opts.Version {
		fmt.Printf("%s.plugin, version: %s\n", executable.Name, buildinfo.Version)
		return
	}

	if lvl := os.Getenv("NETDATA_LOG_LEVEL"); lvl != "" {
		_ = logger.Level.SetByName(lvl)
	}
	if opts.Debug {
		logger.Level.Set(slog.LevelDebug)
	}

	a := agent.New(agent.Options{
		Name:        executable.Name,
		ConfigPath:  configPath(opts.ConfigPath),
		UpdateEvery: opts.UpdateEvery,
		Debug:       opts.Debug,
	})

	if opts.Dump {
		if err := a.Dump(os.Stdout); err != nil {
			a.Error(err)
			os.Exit(1)
		}
		return
	}

	a.Infof("plugin: name=%s, %s", a.Name, buildinfo.Info())
	if u, err := user.Current(); err == nil {
		a.Debugf("current user: name=%s, uid=%s", u.Username, u.Uid)
	}
	a.Infof("config file: '%s'", a.ConfigPath)

	a.Run()
}

func parseCLI() *cli.Option {
	opt, err := cli.Parse(os.Args)
	if err != nil {
		if cli.IsHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	return opt
}

// configPath resolves the config file: the command line wins, then the
// netdata user config dir, then the stock config dir. Empty means defaults.
func configPath(cliPath string) string {
	if cliPath != "" {
		return cliPath
	}

	name := executable.Name + ".conf"
	for _, dir := range []string{os.Getenv("NETDATA_USER_CONFIG_DIR"), buildinfo.StockConfigDir} {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
