// SPDX-License-Identifier: GPL-3.0-or-later

package confopt

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FlexBool is a boolean that also accepts yes/no, on/off, y/n, t/f and 1/0, case-insensitively.
type FlexBool bool

func (b FlexBool) Bool() bool { return bool(b) }

func (b *FlexBool) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}

	v, err := parseFlexBool(raw)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

func (b FlexBool) MarshalYAML() (any, error) {
	return bool(b), nil
}

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	v, err := parseFlexBool(raw)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

func (b FlexBool) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(b))
}

func parseFlexBool(raw any) (FlexBool, error) {
	switch v := raw.(type) {
	case bool:
		return FlexBool(v), nil
	case int:
		return flexBoolFromNumber(float64(v))
	case float64:
		return flexBoolFromNumber(v)
	case string:
		s := strings.ToLower(strings.Trim(strings.TrimSpace(v), `"'`))
		switch s {
		case "true", "yes", "y", "on", "t", "1":
			return true, nil
		case "false", "no", "n", "off", "f", "0":
			return false, nil
		}
		return false, fmt.Errorf("invalid boolean value '%s'", v)
	case nil:
		return false, fmt.Errorf("empty boolean value")
	}
	return false, fmt.Errorf("invalid boolean value '%v'", raw)
}

func flexBoolFromNumber(v float64) (FlexBool, error) {
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("invalid boolean value '%v'", v)
}
