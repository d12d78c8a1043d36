// Package manifest loads container registrations from YAML.
//
//	services:
//	  - key: app.name
//	    value: demo
//	    shared: true
//	    protected: true
//	  - key: mailer
//	    class: example.com/app.Mailer   # autowired from the class catalog
//	    shared: true
//	aliases:
//	  name: app.name
//	tags:
//	  strings: [app.name]
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/km-arc/go-container/framework/container"
	"github.com/km-arc/go-container/framework/http/validation"
)

// Service is one registration. Exactly one of Value and Class is set.
type Service struct {
	Key       string `yaml:"key"`
	Value     any    `yaml:"value,omitempty"`
	Class     string `yaml:"class,omitempty"`
	Shared    bool   `yaml:"shared,omitempty"`
	Protected bool   `yaml:"protected,omitempty"`
}

// Manifest is the decoded YAML document.
type Manifest struct {
	Services []Service          `yaml:"services"`
	Aliases  map[string]string   `yaml:"aliases,omitempty"`
	Tags     map[string][]string `yaml:"tags,omitempty"`
}

// Parse decodes a manifest. Unknown fields are rejected; an empty
// document gives an empty manifest.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("manifest: decoding: %w", err)
	}
	return &m, nil
}

// LoadFile reads, parses and validates the manifest at path.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Marshal encodes m back to YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

var (
	serviceRules = validation.MustCompile(validation.Rules{
		"key":   "required|key|max:255",
		"class": "nullable|key|max:255",
	})
	aliasRules = validation.MustCompile(validation.Rules{
		"alias":  "required|key|different:target",
		"target": "required|key",
	})
	tagRules = validation.MustCompile(validation.Rules{
		"tag": "required|key",
		"key": "required|key",
	})
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("manifest: invalid")

// Validate checks keys, aliases and tags. All problems are reported
// together.
func (m *Manifest) Validate() error {
	var errs []error
	invalid := func(where string, err error) {
		errs = append(errs, fmt.Errorf("%w: %s: %w", ErrInvalid, where, err))
	}

	seen := make(map[string]int, len(m.Services))
	for i, s := range m.Services {
		where := "services[" + strconv.Itoa(i) + "]"
		if err := serviceRules.Check(map[string]string{"key": s.Key, "class": s.Class}); err != nil {
			invalid(where, err)
			continue
		}
		switch {
		case s.Value == nil && s.Class == "":
			invalid(where, fmt.Errorf("[%s] needs a value or a class", s.Key))
		case s.Value != nil && s.Class != "":
			invalid(where, fmt.Errorf("[%s] has both a value and a class", s.Key))
		}
		if j, dup := seen[s.Key]; dup {
			invalid(where, fmt.Errorf("[%s] already declared by services[%d]", s.Key, j))
		}
		seen[s.Key] = i
	}

	for _, alias := range sortedKeys(m.Aliases) {
		target := m.Aliases[alias]
		if err := aliasRules.Check(map[string]string{"alias": alias, "target": target}); err != nil {
			invalid("aliases."+alias, err)
		}
	}

	for _, tag := range sortedKeys(m.Tags) {
		for i, key := range m.Tags[tag] {
			if err := tagRules.Check(map[string]string{"tag": tag, "key": key}); err != nil {
				invalid(fmt.Sprintf("tags.%s[%d]", tag, i), err)
			}
		}
	}
	return errors.Join(errs...)
}

// ApplyOption tunes Apply.
type ApplyOption func(*applyOptions)

type applyOptions struct {
	skipProtected bool
}

// SkipProtected leaves keys that are already protected in the container
// untouched instead of failing. Reloads use it.
func SkipProtected() ApplyOption {
	return func(o *applyOptions) { o.skipProtected = true }
}

// Apply validates m and registers its services, aliases and tags in c.
// Registration continues past failing entries; their errors are joined.
// Aliases and tags are applied in key order.
func (m *Manifest) Apply(c *container.Container, opts ...ApplyOption) error {
	if err := m.Validate(); err != nil {
		return err
	}
	var o applyOptions
	for _, opt := range opts {
		opt(&o)
	}

	var errs []error
	for _, s := range m.Services {
		if o.skipProtected && c.Has(s.Key) {
			if protected, err := c.IsProtected(s.Key); err == nil && protected {
				continue
			}
		}
		var setOpts []container.SetOption
		if s.Shared {
			setOpts = append(setOpts, container.Shared())
		}
		if s.Protected {
			setOpts = append(setOpts, container.Protected())
		}
		if err := c.Set(s.Key, s.resource(), setOpts...); err != nil {
			errs = append(errs, fmt.Errorf("manifest: service [%s]: %w", s.Key, err))
		}
	}

	for _, alias := range sortedKeys(m.Aliases) {
		c.Alias(alias, m.Aliases[alias])
	}
	for _, tag := range sortedKeys(m.Tags) {
		keys := m.Tags[tag]
		if c.HasTag(tag) {
			keys = missing(c, tag, keys)
		}
		c.Tag(tag, keys...)
	}
	return errors.Join(errs...)
}

// resource turns s into the value handed to Container.Set.
func (s Service) resource() any {
	if s.Class == "" {
		return s.Value
	}
	class := s.Class
	return container.Factory(func(c *container.Container) (any, error) {
		return c.Construct(class)
	})
}

// missing drops keys already tagged, so re-applying a manifest does not
// grow its tags.
func missing(c *container.Container, tag string, keys []string) []string {
	existing := c.TaggedKeys(tag)
	return slices.DeleteFunc(slices.Clone(keys), func(k string) bool {
		return slices.Contains(existing, c.Canonical(k))
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
