// SPDX-License-Identifier: GPL-3.0-or-later

package rcon

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var (
	reTPS       = regexp.MustCompile(`(?s)(?P<tps_1min>\d+\.\d+),.*?(?P<tps_5min>\d+\.\d+),.*?(?P<tps_15min>\d+\.\d+)`)
	reList      = regexp.MustCompile(`(?P<players>\d+)/?(?P<hidden_players>\d+)?.*?(?P<total_players>\d+)`)
	reCleanResp = regexp.MustCompile(`§.`)
)

func parseResponse(resp string, re *regexp.Regexp, fn func(string, float64)) error {
	if resp == "" {
		return errors.New("empty response")
	}

	resp = reCleanResp.ReplaceAllString(resp, "")

	matches := re.FindStringSubmatch(resp)
	if len(matches) == 0 {
		return errors.New("regexp does not match")
	}

	for i, name := range re.SubexpNames() {
		if name == "" || len(matches) <= i || matches[i] == "" {
			continue
		}
		val := matches[i]

		v, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("failed to parse key '%s' value '%s': %v", name, val, err)
		}

		fn(name, v)
	}

	return nil
}
