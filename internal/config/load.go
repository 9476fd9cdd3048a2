package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/roach88/ecomgen/internal/generr"
)

//go:embed defaults.yaml
var defaultsYAML []byte

//go:embed schema.cue
var schemaCUE string

// mergePaths are the mapping nodes merged key by key when a user file is
// laid over the defaults. Any other value in the user file replaces the
// default wholesale, so a distribution given by the user is never mixed
// with default keys.
var mergePaths = map[string]bool{
	"":                 true,
	"date_settings":    true,
	"simulation":       true,
	"lookup":           true,
	"lookup.customers": true,
	"lookup.products":  true,
	"vocab":            true,
	"parameters":       true,
	"validation":       true,
	"export":           true,
}

// Default returns the baseline configuration.
func Default() *Config {
	cfg, err := Parse("defaults.yaml", nil)
	if err != nil {
		panic(fmt.Sprintf("embedded defaults are invalid: %v", err))
	}
	return cfg
}

// DefaultYAML returns the embedded baseline configuration document.
func DefaultYAML() []byte {
	return bytes.Clone(defaultsYAML)
}

// Load reads a configuration file and lays it over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, generr.NewConfigurationError("", "read config: %v", err)
	}
	return Parse(path, data)
}

// Parse merges data over the defaults, checks the result against the
// schema, decodes it and runs Check. name is used in error positions.
// Empty data yields the defaults.
func Parse(name string, data []byte) (*Config, error) {
	merged, err := Merge(name, data)
	if err != nil {
		return nil, err
	}
	if err := checkSchema(name, merged); err != nil {
		return nil, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(merged))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, generr.NewConfigurationError("", "decode %s: %v", name, err)
	}

	if errs := Check(&cfg); len(errs) > 0 {
		return nil, fold(errs)
	}
	return &cfg, nil
}

// Merge returns the YAML document obtained by laying data over the defaults.
func Merge(name string, data []byte) ([]byte, error) {
	base, err := parseNode(defaultsYAML)
	if err != nil {
		return nil, fmt.Errorf("parse embedded defaults: %w", err)
	}
	over, err := parseNode(data)
	if err != nil {
		return nil, generr.NewConfigurationError("", "parse %s: %v", name, err)
	}
	if over != nil {
		if over.Kind != yaml.MappingNode {
			return nil, generr.NewConfigurationError("", "%s: top level must be a mapping", name)
		}
		mergeNode(base, over, "")
	}
	out, err := yaml.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("encode merged config: %w", err)
	}
	return out, nil
}

// parseNode returns the root mapping of a YAML document, or nil for an
// empty document.
func parseNode(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}
	return doc.Content[0], nil
}

func mergeNode(dst, src *yaml.Node, path string) {
	for i := 0; i+1 < len(src.Content); i += 2 {
		key, val := src.Content[i], src.Content[i+1]
		child := key.Value
		if path != "" {
			child = path + "." + key.Value
		}

		j := mappingIndex(dst, key.Value)
		if j < 0 {
			dst.Content = append(dst.Content, key, val)
			continue
		}
		cur := dst.Content[j+1]
		if mergePaths[child] && cur.Kind == yaml.MappingNode && val.Kind == yaml.MappingNode {
			mergeNode(cur, val, child)
			continue
		}
		dst.Content[j+1] = val
	}
}

func mappingIndex(m *yaml.Node, key string) int {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i
		}
	}
	return -1
}

// checkSchema unifies the document with #Config and requires a concrete result.
func checkSchema(name string, data []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	file, err := cueyaml.Extract(name, data)
	if err != nil {
		return generr.NewConfigurationError("", "parse %s: %v", name, err)
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return &generr.ConfigurationError{Message: "invalid document", Problems: cueProblems(err)}
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return &generr.ConfigurationError{Message: "schema check failed", Problems: cueProblems(err)}
	}
	return nil
}

// cueProblems flattens a CUE error list into "path: message" lines.
func cueProblems(err error) []string {
	var out []string
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if p := strings.Join(e.Path(), "."); p != "" {
			msg = p + ": " + msg
		}
		out = append(out, msg)
	}
	if len(out) == 0 {
		out = append(out, err.Error())
	}
	return out
}

// fold turns semantic findings into a single ConfigurationError.
func fold(errs []ValidationError) error {
	first := errs[0]
	ce := &generr.ConfigurationError{Field: first.Field, Message: first.Message}
	if len(errs) > 1 {
		for _, e := range errs[1:] {
			ce.Problems = append(ce.Problems, e.Error())
		}
	}
	return ce
}
