package crn

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Specification types.
const (
	TypeMassAction = "mass action"
	TypeStochastic = "stochastic"
)

// Spec is a parsed JSON specification, before reaction strings are expanded.
//
//	{
//	    "type": "mass action",
//	    "name": "toy",
//	    "species": {"X": "0.5", "Y": "0.25", "Z": "0.25"},
//	    "reactions": {
//	        "2X + 3Y <-> Z": ["0.0001", "0.000008"],
//	        "2X -> Y + Z": ["0.003"],
//	        "X -> ": ["0.229"]
//	    }
//	}
//
// Object members are kept in document order: species order fixes vector
// indices and reaction order fixes rate names.
type Spec struct {
	Type         string
	Name         string
	Species      Species
	InitialState InitialState
	Reactions    []ReactionDecl
}

// ParseSpec decodes a JSON specification.
func ParseSpec(data []byte) (*Spec, error) {
	if !gjson.ValidBytes(data) {
		return nil, parseErrorf("", "", "specification is not valid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, parseErrorf("", "", "specification must be a JSON object")
	}

	typ := root.Get("type")
	if !typ.Exists() {
		return nil, fmt.Errorf("%w: no simulation type specified, should be %q or %q",
			ErrSpecificationType, TypeMassAction, TypeStochastic)
	}
	switch {
	case typ.Type == gjson.String && typ.Str == TypeMassAction:
	case typ.Type == gjson.String && typ.Str == TypeStochastic:
		return nil, fmt.Errorf("%w: %w: the stochastic model", ErrSpecificationType, ErrNotImplemented)
	default:
		return nil, fmt.Errorf("%w: CRN type %s not known, should be %q or %q",
			ErrSpecificationType, typ.Raw, TypeMassAction, TypeStochastic)
	}

	spec := &Spec{Type: typ.Str}
	if name := root.Get("name"); name.Exists() {
		if name.Type != gjson.String {
			return nil, parseErrorf("", name.Raw, "field name must be a string")
		}
		spec.Name = name.Str
	}

	species := root.Get("species")
	if !species.IsObject() {
		return nil, parseErrorf("", "", "field species must be an object")
	}
	var err error
	species.ForEach(func(key, value gjson.Result) bool {
		var v float64
		if v, err = parseNumber(value, "species "+key.Str); err != nil {
			return false
		}
		spec.Species = append(spec.Species, key.Str)
		spec.InitialState = append(spec.InitialState, Amount{Species: key.Str, Value: v})
		return true
	})
	if err != nil {
		return nil, err
	}

	reactions := root.Get("reactions")
	if !reactions.IsObject() {
		return nil, parseErrorf("", "", "field reactions must be an object")
	}
	reactions.ForEach(func(key, value gjson.Result) bool {
		if !value.IsArray() {
			err = parseErrorf(key.Str, value.Raw, "rates must be a list")
			return false
		}
		decl := ReactionDecl{Expr: key.Str}
		for _, r := range value.Array() {
			var v float64
			if v, err = parseNumber(r, "rate of "+key.Str); err != nil {
				return false
			}
			decl.Rates = append(decl.Rates, v)
		}
		spec.Reactions = append(spec.Reactions, decl)
		return true
	})
	if err != nil {
		return nil, err
	}

	return spec, nil
}

// parseNumber accepts a string-encoded float or a bare JSON number.
func parseNumber(v gjson.Result, field string) (float64, error) {
	var raw string
	switch v.Type {
	case gjson.String:
		raw = strings.TrimSpace(v.Str)
	case gjson.Number:
		raw = v.Raw
	default:
		return 0, parseErrorf("", v.Raw, "%s is not a number", field)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, parseErrorf("", v.Raw, "%s is not a number", field)
	}
	return f, nil
}

// LoadSpec reads a specification file. A missing name defaults to the file
// name without extension.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	spec, err := ParseSpec(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if spec.Name == "" {
		spec.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return spec, nil
}

// Build expands every reaction string, names the rates and constructs the model.
func (s *Spec) Build(opts ...Option) (*Model, error) {
	o := buildOptions(opts)
	log := o.logger.Named("parser")

	if err := s.Species.validate(); err != nil {
		return nil, err
	}

	rates, err := NameRates(s.Reactions)
	if err != nil {
		return nil, err
	}

	reactions := make([]Reaction, 0, len(s.Reactions))
	for _, d := range s.Reactions {
		terms, err := ParseReaction(d.Expr, s.Species)
		if err != nil {
			return nil, err
		}
		if len(terms) != len(d.Rates) {
			return nil, parseErrorf(d.Expr, "", "declares %d rates, a reaction with %d directions needs %d",
				len(d.Rates), len(terms), len(terms))
		}
		reactions = append(reactions, Reaction{Expr: d.Expr, Terms: terms})
		for _, t := range terms {
			log.Debug("reaction term",
				zap.String("reaction", d.Expr),
				zap.Float64s("reactants", t.Reactants),
				zap.Float64s("products", t.Products))
		}
	}

	log.Debug("specification parsed",
		zap.String("name", s.Name),
		zap.Strings("species", s.Species),
		zap.Strings("rate_names", rates.Names),
		zap.Float64s("rates", rates.Values))

	return New(s.Name, s.Species, s.InitialState, rates, reactions, opts...)
}

// FromJSON loads and builds a model from a specification file.
func FromJSON(path string, opts ...Option) (*Model, error) {
	spec, err := LoadSpec(path)
	if err != nil {
		return nil, err
	}
	m, err := spec.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
