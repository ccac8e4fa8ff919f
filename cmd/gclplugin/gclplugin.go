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

// Package gclplugin implements the golangci-lint's module plugin interface for the inlining
// planner to be used as a private linter in golangci-lint. See more details at
// https://golangci-lint.run/plugins/module-plugins/.
package gclplugin

import (
	"fmt"

	"github.com/golangci/plugin-module-register/register"
	"github.com/qasimy123/inlineplan"
	"github.com/qasimy123/inlineplan/config"
	"golang.org/x/tools/go/analysis"
)

func init() {
	register.Plugin("inlineplan", New)
}

// New returns the golangci-lint plugin that wraps the inlineplan analyzer. The settings map flag
// names of the config analyzer to their values, which may be strings, booleans or integers.
func New(settings any) (register.LinterPlugin, error) {
	s, ok := settings.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expect the inlineplan configurations to be a map from flag names "+
			"to values (similar to command line flags), got %T", settings)
	}
	conf := make(map[string]string, len(s))
	for k, v := range s {
		switch v := v.(type) {
		case string:
			conf[k] = v
		case bool, int, int64, float64:
			// YAML numbers may be decoded as floats; %v prints integral ones without a fraction.
			conf[k] = fmt.Sprintf("%v", v)
		default:
			return nil, fmt.Errorf("expect the inlineplan configuration value for %q to be a scalar, got %T", k, v)
		}
	}

	return &InlinePlanPlugin{conf: conf}, nil
}

// InlinePlanPlugin is the inlineplan plugin wrapper for golangci-lint.
type InlinePlanPlugin struct {
	conf map[string]string
}

// BuildAnalyzers builds the inlineplan analyzer with the configurations applied to the config
// analyzer.
func (p *InlinePlanPlugin) BuildAnalyzers() ([]*analysis.Analyzer, error) {
	for k, v := range p.conf {
		if err := config.Analyzer.Flags.Set(k, v); err != nil {
			return nil, fmt.Errorf("set config flag %s with %s: %w", k, v, err)
		}
	}

	return []*analysis.Analyzer{inlineplan.Analyzer}, nil
}

// GetLoadMode returns the load mode of the plugin. The planner builds SSA, which needs types info.
func (p *InlinePlanPlugin) GetLoadMode() string { return register.LoadModeTypesInfo }
