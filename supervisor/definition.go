// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/coreinit/coreinit/sandbox"
)

// Definition is the YAML-shaped input a service is declared with. It maps
// directly onto Service's fields; a Definition is resolved into a Service
// by NewServiceFromDefinition once capability/namespace/ioprio names have
// been validated.
type Definition struct {
	Name          string            `yaml:"name"`
	Classnames    []string          `yaml:"classnames,omitempty"`
	Argv          []string          `yaml:"argv"`
	Env           map[string]string `yaml:"env,omitempty"`
	ConsolePath   string            `yaml:"console,omitempty"`
	SecLabel      string            `yaml:"seclabel,omitempty"`
	Namespaces    []string          `yaml:"namespaces,omitempty"`
	WritepidFiles []string          `yaml:"writepid_files,omitempty"`

	UID          string   `yaml:"uid,omitempty"`
	GID          string   `yaml:"gid,omitempty"`
	SuppGIDs     []string `yaml:"supp_gids,omitempty"`
	Capabilities []string `yaml:"capabilities,omitempty"`
	Priority     int      `yaml:"priority,omitempty"`
	IOPrioClass  string   `yaml:"ioprio_class,omitempty"`
	IOPrioPrio   int      `yaml:"ioprio_pri,omitempty"`
	OOMScoreAdj  *int     `yaml:"oom_score_adj,omitempty"`

	Swappiness        int    `yaml:"swappiness,omitempty"`
	SoftLimitBytes    string `yaml:"soft_limit_bytes,omitempty"`
	LimitBytes        string `yaml:"limit_bytes,omitempty"`
	LimitPercent      int    `yaml:"limit_percent,omitempty"`
	LimitPropertyName string `yaml:"limit_property_name,omitempty"`

	Disabled  bool     `yaml:"disabled,omitempty"`
	Oneshot   bool     `yaml:"oneshot,omitempty"`
	Critical  bool     `yaml:"critical,omitempty"`
	Console   bool     `yaml:"console_flag,omitempty"`
	Updatable bool     `yaml:"updatable,omitempty"`
	Tags      []string `yaml:"tags,omitempty"`
}

// definitionFile is the top-level document shape: a list of definitions
// per file, matching the teacher's ProfilesConfig-style "many documents
// per file" convention.
type definitionFile struct {
	Services []Definition `yaml:"services"`
}

var namespaceByName = map[string]sandbox.NamespaceFlags{
	"mount": sandbox.NamespaceMount,
	"net":   sandbox.NamespaceNet,
	"pid":   sandbox.NamespacePID,
	"uts":   sandbox.NamespaceUTS,
	"ipc":   sandbox.NamespaceIPC,
}

var ioprioClassByName = map[string]sandbox.IOPrioClass{
	"":         sandbox.IOPrioClassNone,
	"none":     sandbox.IOPrioClassNone,
	"rt":       sandbox.IOPrioClassRealtime,
	"be":       sandbox.IOPrioClassBestEffort,
	"idle":     sandbox.IOPrioClassIdle,
}

// DefinitionLoader loads Definitions from a directory of YAML files,
// following the same load-then-resolve shape the teacher's
// sandbox.ProfileLoader used for bwrap profiles (LoadDirectory,
// SetLogger, a resolved cache), applied here to service definitions.
type DefinitionLoader struct {
	definitions map[string]Definition
	logger      *slog.Logger
}

// NewDefinitionLoader creates an empty loader.
func NewDefinitionLoader() *DefinitionLoader {
	return &DefinitionLoader{definitions: make(map[string]Definition)}
}

// SetLogger enables verbose logging during load.
func (l *DefinitionLoader) SetLogger(logger *slog.Logger) { l.logger = logger }

func (l *DefinitionLoader) log(msg string, args ...any) {
	if l.logger != nil {
		l.logger.Info(msg, args...)
	}
}

// LoadFile loads the definitions in a single YAML file.
func (l *DefinitionLoader) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("supervisor: read %s: %w", path, err)
	}
	var doc definitionFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("supervisor: parse %s: %w", path, err)
	}
	for _, def := range doc.Services {
		if def.Name == "" {
			return fmt.Errorf("supervisor: %s: service definition missing name", path)
		}
		l.definitions[def.Name] = def
	}
	l.log("loaded service definitions", "path", path, "count", len(doc.Services))
	return nil
}

// LoadDirectory loads every .yaml/.yml file in dir, later files
// overriding earlier ones by name. A missing directory is not an error.
func (l *DefinitionLoader) LoadDirectory(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("supervisor: read dir %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		if err := l.LoadFile(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

// Names returns every loaded definition name, sorted.
func (l *DefinitionLoader) Names() []string {
	names := make([]string, 0, len(l.definitions))
	for n := range l.definitions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// BuildServices resolves every loaded definition into a Service and
// returns them, failing on the first resolution error.
func (l *DefinitionLoader) BuildServices() ([]*Service, error) {
	services := make([]*Service, 0, len(l.definitions))
	for _, name := range l.Names() {
		s, err := NewServiceFromDefinition(l.definitions[name])
		if err != nil {
			return nil, fmt.Errorf("supervisor: resolve %q: %w", name, err)
		}
		services = append(services, s)
	}
	return services, nil
}

// NewServiceFromDefinition validates and resolves a Definition into a
// runnable Service.
func NewServiceFromDefinition(def Definition) (*Service, error) {
	if len(def.Argv) == 0 {
		return nil, fmt.Errorf("argv is required")
	}
	if _, err := sandbox.ResolveCapabilities(def.Capabilities); err != nil {
		return nil, err
	}

	s := NewService(def.Name, def.Argv)
	s.Env = def.Env
	s.ConsolePath = def.ConsolePath
	s.SecLabel = def.SecLabel
	s.WritepidFiles = def.WritepidFiles
	s.Capabilities = def.Capabilities
	s.Priority = def.Priority
	s.IOPrioPrio = def.IOPrioPrio
	s.Swappiness = def.Swappiness
	s.LimitPercent = def.LimitPercent
	s.LimitPropertyName = def.LimitPropertyName
	s.Updatable = def.Updatable

	if len(def.Classnames) > 0 {
		s.Classnames = make(map[string]bool, len(def.Classnames))
		for _, c := range def.Classnames {
			s.Classnames[c] = true
		}
	}

	for _, n := range def.Namespaces {
		flag, ok := namespaceByName[n]
		if !ok {
			return nil, fmt.Errorf("unknown namespace %q", n)
		}
		s.Namespace |= flag
	}

	class, ok := ioprioClassByName[def.IOPrioClass]
	if !ok {
		return nil, fmt.Errorf("unknown ioprio class %q", def.IOPrioClass)
	}
	s.IOPrioClass = class

	if def.OOMScoreAdj != nil {
		s.OOMScoreAdj = *def.OOMScoreAdj
	}

	if def.UID != "" {
		uid, err := resolveUID(def.UID)
		if err != nil {
			return nil, err
		}
		s.UID = uid
		s.HasUID = true
	}
	if def.GID != "" {
		gid, err := resolveGID(def.GID)
		if err != nil {
			return nil, err
		}
		s.GID = gid
	}
	for _, g := range def.SuppGIDs {
		gid, err := resolveGID(g)
		if err != nil {
			return nil, err
		}
		s.SuppGIDs = append(s.SuppGIDs, gid)
	}

	if def.SoftLimitBytes != "" {
		limit, err := ParseMemoryLimit(def.SoftLimitBytes)
		if err != nil {
			return nil, err
		}
		s.SoftLimitBytes = limit
	}
	if def.LimitBytes != "" {
		limit, err := ParseMemoryLimit(def.LimitBytes)
		if err != nil {
			return nil, err
		}
		s.LimitBytes = limit
	}

	if def.Disabled {
		s.Flags |= Disabled
	}
	if def.Oneshot {
		s.Flags |= Oneshot
	}
	if def.Critical {
		s.Flags |= Critical
	}
	if def.Console {
		s.Flags |= Console
	}

	return s, nil
}
