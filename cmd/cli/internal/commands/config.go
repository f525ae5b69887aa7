package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile supplies flag defaults when present.
const DefaultConfigFile = "~/.certifychain/config.yaml"

// YAMLConfig is a kong.ConfigurationLoader for YAML files. Top-level keys
// name global flags; a nested map keyed by command name holds that
// command's flags. Keys may use dashes or underscores.
//
//	server: https://certs.example.edu
//	timeout: 10s
//	login:
//	  email: registrar@example.edu
func YAMLConfig(r io.Reader) (kong.Resolver, error) {
	values := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	var f kong.ResolverFunc = func(kctx *kong.Context, parent *kong.Path, flag *kong.Flag) (any, error) {
		if parent != nil && parent.Command != nil {
			if section, ok := lookup(values, parent.Command.Name).(map[string]any); ok {
				if v := lookup(section, flag.Name); v != nil {
					return stringify(v), nil
				}
			}
		}
		if v := lookup(values, flag.Name); v != nil {
			if _, nested := v.(map[string]any); !nested {
				return stringify(v), nil
			}
		}
		return nil, nil
	}

	return f, nil
}

func lookup(values map[string]any, name string) any {
	if v, ok := values[name]; ok {
		return v
	}
	if v, ok := values[strings.ReplaceAll(name, "-", "_")]; ok {
		return v
	}
	return nil
}

// stringify renders scalars the way they would be typed on the command line
// so every kong mapper can parse them.
func stringify(v any) any {
	switch v := v.(type) {
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ",")
	case map[string]any:
		parts := make([]string, 0, len(v))
		for k, item := range v {
			parts = append(parts, fmt.Sprintf("%s=%v", k, item))
		}
		return strings.Join(parts, ";")
	default:
		return fmt.Sprint(v)
	}
}
