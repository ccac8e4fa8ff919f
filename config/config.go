//  Copyright (c) 2023 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config implements the configuration of the planner: the user-facing Config, the
// analyzer exposing it as flags, and loading it from a TOML file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"go/ast"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/qasimy123/inlineplan/budget"
	"go.uber.org/zap"
	"golang.org/x/tools/go/analysis"
)

// Flag names of the config analyzer.
const (
	IncludePkgsFlag           = "include-pkgs"
	ExcludePkgsFlag           = "exclude-pkgs"
	ExcludeFileDocStringsFlag = "exclude-file-docstrings"
	HotnessFlag               = "hotness"
	BudgetFlag                = "budget"
	MaxIDTNodesFlag           = "max-idt-nodes"
	MaxTargetsPerSiteFlag     = "max-targets-per-site"
	TraceFlag                 = "trace"
	PrettyPrintFlag           = "pretty-print"
	ConfigFileFlag            = "config-file"
)

const _doc = "Collect the configuration of the inlining planner from flags and an optional TOML file, " +
	"and provide it to the other analyzers."

// Analyzer is the analyzer that parses the flags and the configuration file into a *Config.
var Analyzer = &analysis.Analyzer{
	Name:       "inlineplan_config",
	Doc:        _doc,
	Run:        run,
	Flags:      newFlagSet(),
	ResultType: reflect.TypeOf((*Config)(nil)),
}

// Config is the configuration of one run of the planner.
type Config struct {
	// Hotness is the optimization tier every function is planned for.
	Hotness budget.Hotness `toml:"hotness"`
	// Budget overrides the budget derived from the size of each function when positive.
	Budget int `toml:"budget"`
	// MaxIDTNodes is the node ceiling of one inlining tree, 0 for none.
	MaxIDTNodes int `toml:"max-idt-nodes"`
	// MaxTargetsPerSite is the number of targets considered for one dynamic call site.
	MaxTargetsPerSite int `toml:"max-targets-per-site"`
	// IncludePkgs lists package path prefixes to plan; empty means all packages.
	IncludePkgs []string `toml:"include-pkgs"`
	// ExcludePkgs lists package path prefixes not to plan. It takes precedence over IncludePkgs.
	ExcludePkgs []string `toml:"exclude-pkgs"`
	// ExcludeFileDocStrings lists strings that exclude a file when found in its doc comments.
	ExcludeFileDocStrings []string `toml:"exclude-file-docstrings"`
	// Trace enables debug logging of every planning decision.
	Trace bool `toml:"trace"`
	// PrettyPrint colors the reported diagnostics.
	PrettyPrint bool `toml:"pretty-print"`

	logger *zap.Logger
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Hotness:           budget.Normal,
		MaxIDTNodes:       MaxIDTNodes,
		MaxTargetsPerSite: MaxTargetsPerSite,
	}
}

// Load reads a configuration from a TOML file. Keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %q: %w", path, err)
	}
	return c, nil
}

// Save writes c to a TOML file.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the ranges of the numeric settings.
func (c *Config) Validate() error {
	var errs []error
	if c.Budget < 0 {
		errs = append(errs, fmt.Errorf("budget must not be negative, got %d", c.Budget))
	}
	if c.MaxIDTNodes < 0 {
		errs = append(errs, fmt.Errorf("max-idt-nodes must not be negative, got %d", c.MaxIDTNodes))
	}
	if c.MaxTargetsPerSite < 1 {
		errs = append(errs, fmt.Errorf("max-targets-per-site must be at least 1, got %d", c.MaxTargetsPerSite))
	}
	return errors.Join(errs...)
}

// Logger returns the logger of the run: a development logger when tracing, a no-op one otherwise.
func (c *Config) Logger() *zap.Logger {
	if c.logger == nil {
		c.logger = zap.NewNop()
		if c.Trace {
			if l, err := zap.NewDevelopment(); err == nil {
				c.logger = l
			}
		}
	}
	return c.logger
}

// SetLogger replaces the logger of the run.
func (c *Config) SetLogger(l *zap.Logger) { c.logger = l }

// IsPkgInScope returns true iff the passed package path is in scope for planning.
func (c *Config) IsPkgInScope(pkgPath string) bool {
	for _, prefix := range c.ExcludePkgs {
		if strings.HasPrefix(pkgPath, prefix) {
			return false
		}
	}
	if len(c.IncludePkgs) == 0 {
		return true
	}
	for _, prefix := range c.IncludePkgs {
		if strings.HasPrefix(pkgPath, prefix) {
			return true
		}
	}
	return false
}

// IsFileInScope returns true iff the file is neither generated nor marked by one of the
// exclusion strings in its doc comments.
func (c *Config) IsFileInScope(file *ast.File) bool {
	if ast.IsGenerated(file) {
		return false
	}
	for _, group := range file.Comments {
		if group.End() > file.Package {
			break
		}
		text := group.Text()
		if strings.Contains(text, NoPlanString) {
			return false
		}
		for _, s := range c.ExcludeFileDocStrings {
			if strings.Contains(text, s) {
				return false
			}
		}
	}
	return true
}

func newFlagSet() flag.FlagSet {
	fs := flag.NewFlagSet("flags", flag.ExitOnError)

	// We do not keep the returned pointers to the flags because we will not use them directly
	// here. Instead, we will use the flags through the analyzer's Flags field later.
	_ = fs.String(IncludePkgsFlag, "", "Comma-separated list of package prefixes to plan, empty means all packages")
	_ = fs.String(ExcludePkgsFlag, "", "Comma-separated list of package prefixes not to plan, takes precedence over include-pkgs")
	_ = fs.String(ExcludeFileDocStringsFlag, "", "Comma-separated list of strings that exclude a file when found in its doc comments")
	_ = fs.String(HotnessFlag, budget.Normal.String(), "Optimization tier: normal, warm, hot or scorching")
	_ = fs.Int(BudgetFlag, 0, "Inlining budget of every function, 0 derives it from the function size and hotness")
	_ = fs.Int(MaxIDTNodesFlag, MaxIDTNodes, "Node ceiling of one inlining tree, 0 for none")
	_ = fs.Int(MaxTargetsPerSiteFlag, MaxTargetsPerSite, "Number of targets considered for one dynamic call site")
	_ = fs.Bool(TraceFlag, false, "Log every planning decision")
	_ = fs.Bool(PrettyPrintFlag, false, "Color the reported diagnostics")
	_ = fs.String(ConfigFileFlag, "", "TOML file to read the configuration from; explicitly set flags take precedence")

	return *fs
}

func run(pass *analysis.Pass) (any, error) {
	return FromFlags(&pass.Analyzer.Flags)
}

// FromFlags builds a configuration from the flag set of the analyzer: the configuration file
// if one is given, then every explicitly set flag.
func FromFlags(fs *flag.FlagSet) (*Config, error) {
	c := Default()
	if path := fs.Lookup(ConfigFileFlag).Value.String(); path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		c = loaded
	}

	var errs []error
	fs.Visit(func(f *flag.Flag) {
		if err := c.apply(f.Name, f.Value.String()); err != nil {
			errs = append(errs, fmt.Errorf("flag -%s: %w", f.Name, err))
		}
	})
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) apply(name, value string) error {
	var err error
	switch name {
	case IncludePkgsFlag:
		c.IncludePkgs = splitList(value)
	case ExcludePkgsFlag:
		c.ExcludePkgs = splitList(value)
	case ExcludeFileDocStringsFlag:
		c.ExcludeFileDocStrings = splitList(value)
	case HotnessFlag:
		c.Hotness, err = budget.ParseHotness(value)
	case BudgetFlag:
		c.Budget, err = strconv.Atoi(value)
	case MaxIDTNodesFlag:
		c.MaxIDTNodes, err = strconv.Atoi(value)
	case MaxTargetsPerSiteFlag:
		c.MaxTargetsPerSite, err = strconv.Atoi(value)
	case TraceFlag:
		c.Trace, err = strconv.ParseBool(value)
	case PrettyPrintFlag:
		c.PrettyPrint, err = strconv.ParseBool(value)
	}
	return err
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
