// Package config loads HCL files describing named connection profiles.
//
//	logging {
//	  level = "debug"
//	}
//
//	const {
//	  host = "studio.local"
//	}
//
//	connection "studio" {
//	  uri                 = "obsws://${const.host}:4455/${env.OBS_PASSWORD}"
//	  dial_timeout        = "10s"
//	  event_subscriptions = ["general", "scenes", "inputs"]
//	}
package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ConfigBuilder struct {
	logger  *zap.Logger
	sources []any
}

type Config struct {
	Logger      *zap.Logger
	Logging     *Logging
	Functions   map[string]function.Function
	Constants   map[string]cty.Value
	Connections map[string]*Connection
	evalCtx     *hcl.EvalContext
}

// Logging holds the optional logging block.
type Logging struct {
	LevelName string `hcl:"level,optional"`
	Encoding  string `hcl:"encoding,optional"`

	Level zapcore.Level
}

func NewConfig() *ConfigBuilder {
	return &ConfigBuilder{
		logger:  zap.NewNop(),
		sources: make([]any, 0),
	}
}

func (cb *ConfigBuilder) WithLogger(logger *zap.Logger) *ConfigBuilder {
	if logger != nil {
		cb.logger = logger
	}
	return cb
}

func (cb *ConfigBuilder) WithSources(sources ...any) *ConfigBuilder {
	cb.sources = append(cb.sources, sources...)
	return cb
}

func (cb *ConfigBuilder) Build() (*Config, hcl.Diagnostics) {
	config := &Config{
		Logger:      cb.logger,
		Constants:   make(map[string]cty.Value),
		Connections: make(map[string]*Connection),
	}

	bodies, diags := ParseConfigFiles(cb.sources...)
	if diags.HasErrors() {
		return nil, diags
	}

	userFuncs, remaining, addDiags := ExtractUserFunctions(bodies, func() *hcl.EvalContext {
		return config.evalCtx
	})
	diags = diags.Extend(addDiags)
	if diags.HasErrors() {
		return nil, diags
	}

	config.Functions, addDiags = getFunctions(userFuncs)
	diags = diags.Extend(addDiags)
	if diags.HasErrors() {
		return nil, diags
	}

	blocks, addDiags := cb.GetBlocks(remaining)
	diags = diags.Extend(addDiags)
	if diags.HasErrors() {
		return nil, diags
	}

	config.Constants["env"] = GetEnvObject()
	config.evalCtx = &hcl.EvalContext{
		Functions: config.Functions,
		Variables: config.Constants,
	}

	// Constants first, so later blocks can refer to them.
	diags = diags.Extend(config.processConstants(blocks))
	if diags.HasErrors() {
		return nil, diags
	}

	for _, block := range blocks {
		switch block.Type {
		case "logging":
			diags = diags.Extend(config.processLogging(block))
		case "connection":
			diags = diags.Extend(config.processConnection(block))
		}
	}

	if diags.HasErrors() {
		return nil, diags
	}

	config.Logger.Debug("Config built", zap.Strings("connections", config.ConnectionNames()))

	return config, diags
}

// Connection returns the profile called name.
func (c *Config) Connection(name string) (*Connection, bool) {
	conn, ok := c.Connections[name]
	return conn, ok
}

// ConnectionNames returns the profile names in sorted order.
func (c *Config) ConnectionNames() []string {
	names := make([]string, 0, len(c.Connections))
	for name := range c.Connections {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func getFunctions(userFuncs map[string]function.Function) (map[string]function.Function, hcl.Diagnostics) {
	funcs := GetStandardLibraryFunctions()
	diags := hcl.Diagnostics{}

	for name, fn := range userFuncs {
		if _, exists := funcs[name]; exists {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate function",
				Detail:   fmt.Sprintf("Function %s is reserved and can't be overridden", name),
			})
			continue
		}
		funcs[name] = fn
	}

	return funcs, diags
}

// processConstants evaluates every const block into the "const" variable.
// Constants may use env and functions but not each other.
func (c *Config) processConstants(blocks hcl.Blocks) hcl.Diagnostics {
	var diags hcl.Diagnostics
	consts := make(map[string]cty.Value)
	defined := make(map[string]hcl.Range)

	for _, block := range blocks {
		if block.Type != "const" {
			continue
		}

		attrs, attrDiags := block.Body.JustAttributes()
		diags = diags.Extend(attrDiags)

		for name, attr := range attrs {
			if prev, exists := defined[name]; exists {
				diags = diags.Append(&hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate constant",
					Detail:   fmt.Sprintf("Constant %s at %v is already defined at %v", name, attr.NameRange, prev),
					Subject:  &attr.NameRange,
				})
				continue
			}
			defined[name] = attr.NameRange

			value, valueDiags := attr.Expr.Value(c.evalCtx)
			diags = diags.Extend(valueDiags)
			consts[name] = value
		}
	}

	c.Constants["const"] = cty.ObjectVal(consts)
	return diags
}

func (c *Config) processLogging(block *hcl.Block) hcl.Diagnostics {
	if c.Logging != nil {
		return hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Duplicate logging block",
			Detail:   "Only one logging block may be defined",
			Subject:  &block.DefRange,
		}}
	}

	logging := &Logging{}
	diags := gohcl.DecodeBody(block.Body, c.evalCtx, logging)
	if diags.HasErrors() {
		return diags
	}

	if logging.LevelName != "" {
		level, err := zapcore.ParseLevel(logging.LevelName)
		if err != nil {
			return diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid log level",
				Detail:   err.Error(),
				Subject:  &block.DefRange,
			})
		}
		logging.Level = level
	} else {
		logging.Level = zapcore.InfoLevel
	}

	switch logging.Encoding {
	case "":
		logging.Encoding = "json"
	case "json", "console":
	default:
		return diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid log encoding",
			Detail:   fmt.Sprintf("Encoding must be \"json\" or \"console\", not %q", logging.Encoding),
			Subject:  &block.DefRange,
		})
	}

	c.Logging = logging
	return diags
}

func parseDuration(value string, subject *hcl.Range) (time.Duration, hcl.Diagnostics) {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid duration",
			Detail:   fmt.Sprintf("%q is not a positive duration", value),
			Subject:  subject,
		}}
	}
	return d, nil
}
