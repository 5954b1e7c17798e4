// SPDX-License-Identifier: GPL-3.0-or-later

package netdataapi

import (
	"io"
	"strconv"
)

// API implements the subset of the Netdata external plugins API used by world.d.
// See: https://learn.netdata.cloud/docs/agent/plugins.d#the-output-of-the-plugin
type API struct {
	io.Writer
}

const quotes = "' '"

var (
	end          = []byte("END\n\n")
	clabelCommit = []byte("CLABEL_COMMIT\n")
	disable      = []byte("DISABLE\n")
	newLine      = []byte("\n")
)

// New creates a new API instance. Panics if the provided writer is nil.
func New(w io.Writer) *API {
	if w == nil {
		panic("writer cannot be nil")
	}
	return &API{w}
}

// CHART creates or updates a chart.
func (a *API) CHART(opts ChartOpts) {
	_, _ = a.Write([]byte("CHART " + "'" +
		opts.TypeID + "." + opts.ID + quotes +
		opts.Name + quotes +
		opts.Title + quotes +
		opts.Units + quotes +
		opts.Family + quotes +
		opts.Context + quotes +
		opts.ChartType + quotes +
		strconv.Itoa(opts.Priority) + quotes +
		strconv.Itoa(opts.UpdateEvery) + quotes +
		opts.Options + quotes +
		opts.Plugin + quotes +
		opts.Module + "'\n"))
}

// DIMENSION adds or updates a dimension to the most recently created chart.
func (a *API) DIMENSION(opts DimensionOpts) {
	_, _ = a.Write([]byte("DIMENSION '" +
		opts.ID + quotes +
		opts.Name + quotes +
		opts.Algorithm + quotes +
		strconv.Itoa(opts.Multiplier) + quotes +
		strconv.Itoa(opts.Divisor) + quotes +
		opts.Options + "'\n"))
}

// CLABEL adds or updates a label of the most recently created chart.
func (a *API) CLABEL(key, value string, source int) {
	_, _ = a.Write([]byte("CLABEL '" +
		key + quotes +
		value + quotes +
		strconv.Itoa(source) + "'\n"))
}

// CLABELCOMMIT commits the labels added with CLABEL.
func (a *API) CLABELCOMMIT() {
	_, _ = a.Write(clabelCommit)
}

// BEGIN starts a data collection round for a chart.
func (a *API) BEGIN(typeID, ID string, msSince int) {
	if msSince > 0 {
		_, _ = a.Write([]byte("BEGIN " + "'" + typeID + "." + ID + "' " + strconv.Itoa(msSince) + "\n"))
		return
	}
	_, _ = a.Write([]byte("BEGIN " + "'" + typeID + "." + ID + "'\n"))
}

// SET sets the value of a dimension for the chart opened with BEGIN.
func (a *API) SET(ID string, value int64) {
	_, _ = a.Write([]byte("SET '" + ID + "' = " + strconv.FormatInt(value, 10) + "\n"))
}

// SETEMPTY marks a dimension as having no value in this round.
func (a *API) SETEMPTY(ID string) {
	_, _ = a.Write([]byte("SET '" + ID + "' = \n"))
}

// END completes the data collection round started with BEGIN.
func (a *API) END() {
	_, _ = a.Write(end)
}

// DISABLE tells Netdata not to restart the plugin.
func (a *API) DISABLE() {
	_, _ = a.Write(disable)
}

// EMPTYLINE writes an empty line. It doubles as the keep-alive probe, so the error is returned.
func (a *API) EMPTYLINE() error {
	_, err := a.Write(newLine)
	return err
}
