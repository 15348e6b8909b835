// Copyright 2025 The Outline Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the socket protection settings of an app from YAML or TOML and wires them into package
// protect.
//
// Example YAML:
//
//	enabled: true
//	handler: jni
//	bridge:
//	  package: com.example.vpn
//
// The same settings in TOML:
//
//	enabled = true
//	handler = "jni"
//
//	[bridge]
//	package = "com.example.vpn"
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Jigsaw-Code/socketprotect/bridge"
	"github.com/Jigsaw-Code/socketprotect/bridge/jni"
	"github.com/Jigsaw-Code/socketprotect/fwmark"
	"github.com/Jigsaw-Code/socketprotect/protect"
	"github.com/goccy/go-yaml"
)

var (
	// ErrUnknownHandler is returned for a handler kind other than the Handler* constants.
	ErrUnknownHandler = errors.New("unknown handler")
	// ErrUnsupportedFormat is returned for configuration files that are neither YAML nor TOML.
	ErrUnsupportedFormat = errors.New("unsupported config format")
	// ErrUnsupportedSignature is returned for a bridge method signature other than [bridge.ProtectSignature].
	ErrUnsupportedSignature = errors.New("unsupported bridge signature")
)

// Handler kinds.
const (
	// HandlerNone registers nothing. Protection then always succeeds.
	HandlerNone = "none"
	// HandlerJNI calls the host TauriVpnService through the Java VM.
	HandlerJNI = "jni"
	// HandlerFwmark sets SO_MARK on Linux.
	HandlerFwmark = "fwmark"
)

// Format is a configuration file format.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

// Config holds the socket protection settings.
type Config struct {
	// Enabled turns the protection gate on.
	Enabled bool `yaml:"enabled" toml:"enabled"`
	// Handler is one of "none", "jni" or "fwmark". Empty means "none".
	Handler string `yaml:"handler" toml:"handler"`
	// Mark is the firewall mark used by the fwmark handler.
	Mark int `yaml:"mark" toml:"mark"`
	// Bridge locates the host entry point used by the jni handler.
	Bridge BridgeConfig `yaml:"bridge" toml:"bridge"`
}

// BridgeConfig overrides parts of [bridge.DefaultTarget]. Empty fields keep their default.
type BridgeConfig struct {
	// Package is the Java package of the service class, like "com.example.vpn".
	Package string `yaml:"package" toml:"package"`
	// Class is the simple name of the service class.
	Class string `yaml:"class" toml:"class"`
	// Method is the static protect method.
	Method string `yaml:"method" toml:"method"`
	// Signature is the JNI signature of Method. Only "(I)Z" is accepted.
	Signature string `yaml:"signature" toml:"signature"`
}

// Target returns the bridge target described by c.
func (c BridgeConfig) Target() bridge.Target {
	pkg := bridge.DefaultPackage
	if c.Package != "" {
		pkg = c.Package
	}
	target := bridge.TargetForPackage(pkg)
	if c.Class != "" {
		target.Class = strings.ReplaceAll(pkg, ".", "/") + "/" + c.Class
	}
	if c.Method != "" {
		target.Method = c.Method
	}
	if c.Signature != "" {
		target.Signature = c.Signature
	}
	return target
}

// Parse decodes a configuration. Unknown keys are rejected.
func Parse(data []byte, format Format) (*Config, error) {
	var cfg Config
	switch format {
	case FormatYAML:
		if len(bytes.TrimSpace(data)) == 0 {
			break
		}
		if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.DisallowUnknownField()); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse TOML config: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("failed to parse TOML config: unknown keys %v", undecoded)
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedFormat, format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FormatForPath picks the format from the file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data, format)
}

// Validate checks the handler kind and its settings.
func (c *Config) Validate() error {
	if sig := c.Bridge.Signature; sig != "" && sig != bridge.ProtectSignature {
		return fmt.Errorf("%w: %q, the protect method must be %v", ErrUnsupportedSignature, sig, bridge.ProtectSignature)
	}
	switch c.Handler {
	case "", HandlerNone, HandlerJNI:
		return nil
	case HandlerFwmark:
		if c.Mark <= 0 {
			return fmt.Errorf("fwmark handler needs a positive mark, got %d", c.Mark)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownHandler, c.Handler)
	}
}

// NewHandler builds the configured handler. It returns nil for the "none" handler.
func (c *Config) NewHandler(logger *slog.Logger) (protect.Handler, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	switch c.Handler {
	case HandlerJNI:
		return bridge.New(jni.Provider(), bridge.WithTarget(c.Bridge.Target()), bridge.WithLogger(logger)), nil
	case HandlerFwmark:
		return &fwmark.Handler{Mark: c.Mark, Logger: logger}, nil
	default:
		return nil, nil
	}
}

// Apply registers the configured handler with reg and sets the gate's flag. Since reg is write-once, the handler is
// ignored if one was registered before.
func (c *Config) Apply(reg *protect.Registry, gate *protect.Gate, logger *slog.Logger) error {
	handler, err := c.NewHandler(logger)
	if err != nil {
		return err
	}
	if handler != nil {
		reg.Register(handler)
	}
	gate.SetEnabled(c.Enabled)
	return nil
}
