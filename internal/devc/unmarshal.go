/*
   devc: a devcontainer.json parser and configuration resolver
   Copyright (C) 2025  The devc authors

   This program is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   This program is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU General Public License for more details.
*/

package devc

import (
	"encoding/json"
	"fmt"

	dockeropts "github.com/docker/cli/opts"
	dockermounts "github.com/docker/docker/volume/mounts"
)

// coerceStringArray converts a JSON value that may be a bare scalar, a
// number, or an array of either into a []string. Used by the several
// devcontainer.json fields that accept "one or many" port-like values.
func coerceStringArray(data []byte) ([]string, error) {
	if len(data) < 1 {
		return nil, nil
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	var elements []string
	switch v := raw.(type) {
	case []any:
		for _, x := range v {
			switch y := x.(type) {
			case string:
				elements = append(elements, y)
			case float64:
				elements = append(elements, fmt.Sprintf("%.0f", y))
			default:
				return nil, fmt.Errorf("unsupported element type %T in array", x)
			}
		}
	case string:
		elements = append(elements, v)
	case float64:
		elements = append(elements, fmt.Sprintf("%.0f", v))
	default:
		return nil, fmt.Errorf("unknown type: %T", v)
	}
	return elements, nil
}

// UnmarshalJSON for the AppPort type.
func (a *AppPort) UnmarshalJSON(data []byte) error {
	elements, err := coerceStringArray(data)
	if err != nil {
		return err
	}
	*a = elements
	return nil
}

// UnmarshalJSON for the ForwardPorts type.
func (f *ForwardPorts) UnmarshalJSON(data []byte) error {
	elements, err := coerceStringArray(data)
	if err != nil {
		return err
	}
	*f = elements
	return nil
}

// UnmarshalJSON for the CacheFrom type.
func (c *CacheFrom) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case []any:
		var elements []string
		for _, x := range v {
			s, ok := x.(string)
			if !ok {
				return fmt.Errorf("unsupported cacheFrom element: %#v", x)
			}
			elements = append(elements, s)
		}
		c.StringArray = elements
	case string:
		c.String = &v
	default:
		return fmt.Errorf("unsupported cacheFrom value: %#v", raw)
	}
	return nil
}

// UnmarshalJSON for the CommandBase type.
func (c *CommandBase) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case []any:
		var elements []string
		for _, x := range v {
			s, ok := x.(string)
			if !ok {
				return fmt.Errorf("unsupported command element: %#v", x)
			}
			elements = append(elements, s)
		}
		c.StringArray = elements
	case string:
		c.String = &v
	default:
		return fmt.Errorf("unsupported command value: %#v", raw)
	}
	return nil
}

// UnmarshalJSON for the DockerComposeFile type.
func (d *DockerComposeFile) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var elements []string
	switch v := raw.(type) {
	case []any:
		for _, x := range v {
			s, ok := x.(string)
			if !ok {
				return fmt.Errorf("unsupported dockerComposeFile element: %#v", x)
			}
			elements = append(elements, s)
		}
	case string:
		elements = append(elements, v)
	default:
		return fmt.Errorf("unsupported dockerComposeFile value: %#v", raw)
	}
	*d = elements
	return nil
}

// UnmarshalJSON for the ExtendsRef type.
func (e *ExtendsRef) UnmarshalJSON(data []byte) error {
	elements, err := coerceStringArray(data)
	if err != nil {
		return err
	}
	e.StringArray = elements
	return nil
}

// UnmarshalJSON for the FeatureValues type, handling the shorthand
// string declaration form (`"someFeature": "1.0"`), which the spec
// maps to an option named "version":
// https://containers.dev/implementors/features/#:~:text=This%20string%20is%20mapped%20to%20an%20option%20called%20version%2E
func (f *FeatureValues) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		if *f == nil {
			*f = make(FeatureValues)
		}
		var versionOpt FeatureValue
		if err := json.Unmarshal(data, &versionOpt); err != nil {
			return err
		}
		(*f)["version"] = versionOpt
		return nil
	}

	type longhandFeature FeatureValues
	return json.Unmarshal(data, (*longhandFeature)(f))
}

// UnmarshalJSON for the FeatureValue type.
func (f *FeatureValue) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &f.Bool); err == nil {
		return nil
	}
	if err := json.Unmarshal(data, &f.String); err == nil {
		f.Bool = nil
		return nil
	}
	return fmt.Errorf("feature option must be either a string or a boolean: %s", data)
}

// UnmarshalJSON for the LifecycleCommand type.
func (l *LifecycleCommand) UnmarshalJSON(data []byte) error {
	if err := l.CommandBase.UnmarshalJSON(data); err == nil && (l.String != nil || len(l.StringArray) > 0) {
		return nil
	}

	var objMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &objMap); err != nil {
		return err
	}

	parallel := make(map[string]CommandBase, len(objMap))
	for key, raw := range objMap {
		var cmdBase CommandBase
		if err := json.Unmarshal(raw, &cmdBase); err != nil {
			return err
		}
		parallel[key] = cmdBase
	}
	l.ParallelCommands = &parallel
	return nil
}

// UnmarshalJSON for the MobyMount type. Accepts the devcontainer
// spec's struct form, the long-form CSV mount string (`docker run
// --mount` syntax), and the short-form string (`source:target:ro`).
func (m *MobyMount) UnmarshalJSON(data []byte) error {
	type mobyMount MobyMount
	if len(data) > 0 && data[0] == '{' {
		return json.Unmarshal(data, (*mobyMount)(m))
	}

	var mountString string
	if err := json.Unmarshal(data, &mountString); err != nil {
		return err
	}

	mountOpt := dockeropts.MountOpt{}
	if err := mountOpt.Set(mountString); err == nil {
		*m = (MobyMount)(mountOpt.Value()[0])
		return nil
	}

	dockerParser := dockermounts.NewParser()
	mountPt, err := dockerParser.ParseMountRaw(mountString, "")
	if err == nil {
		specJSON, err := json.Marshal(mountPt.Spec)
		if err != nil {
			return err
		}
		return json.Unmarshal(specJSON, m)
	}

	return fmt.Errorf("unable to parse %q as a mount string", mountString)
}
