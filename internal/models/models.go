// Package models ships a small catalog of example reaction networks as JSON
// specifications.
package models

import (
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/san-kum/crnsim/internal/crn"
)

// Prefix marks a command line spec argument as a built-in network name.
const Prefix = "builtin:"

var ErrUnknownNetwork = errors.New("models: unknown network")

//go:embed networks/*.json
var networks embed.FS

// Names lists the built-in networks in alphabetical order.
func Names() []string {
	entries, err := networks.ReadDir("networks")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	sort.Strings(names)
	return names
}

// Spec returns the raw JSON specification of a built-in network.
func Spec(name string) ([]byte, error) {
	data, err := networks.ReadFile(path.Join("networks", name+".json"))
	if err != nil {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrUnknownNetwork, name, strings.Join(Names(), ", "))
	}
	return data, nil
}

// Load parses and builds a built-in network.
func Load(name string, opts ...crn.Option) (*crn.Model, error) {
	data, err := Spec(name)
	if err != nil {
		return nil, err
	}
	spec, err := crn.ParseSpec(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if spec.Name == "" {
		spec.Name = name
	}
	return spec.Build(opts...)
}

// Builtin reports whether arg names a built-in network and returns its name.
func Builtin(arg string) (string, bool) {
	return strings.CutPrefix(arg, Prefix)
}
