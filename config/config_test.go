package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voidbert/PL/diagnostic"
)

func TestDefault(t *testing.T) {
	config := Default()
	assert.NoError(t, config.Validate())
	assert.True(t, config.Compiler.Optimize)
	assert.Equal(t, ".ewvm", config.Output.Extension)
	assert.Equal(t, diagnostic.ColorAuto, config.ColorMode())
	assert.Equal(t, log.WarnLevel, config.LogLevel())
}

func TestParse(t *testing.T) {
	testData := []struct {
		data      string
		extension string
		expected  func() *Config
	}{
		{
			data:      "[compiler]\noptimize = false\n\n[log]\nlevel = \"debug\"\n",
			extension: ".toml",
			expected: func() *Config {
				config := Default()
				config.Compiler.Optimize = false
				config.Log.Level = "debug"
				return config
			},
		},
		{
			data:      "diagnostics:\n  color: never\noutput:\n  extension: .vm\n",
			extension: ".yaml",
			expected: func() *Config {
				config := Default()
				config.Diagnostics.Color = "never"
				config.Output.Extension = ".vm"
				return config
			},
		},
		{
			data:      "compiler:\n  comments: false\n",
			extension: ".YML",
			expected: func() *Config {
				config := Default()
				config.Compiler.Comments = false
				return config
			},
		},
		{
			data:      "",
			extension: ".toml",
			expected:  Default,
		},
	}
	for _, testD := range testData {
		config, err := Parse([]byte(testD.data), testD.extension)
		require.NoError(t, err, testD.data)
		assert.Equal(t, testD.expected(), config)
	}
}

func TestParse_Errors(t *testing.T) {
	testData := []struct {
		data      string
		extension string
	}{
		{data: "[diagnostics]\ncolor = \"rainbow\"\n", extension: ".toml"},
		{data: "log:\n  level: loud\n", extension: ".yaml"},
		{data: "[output]\nextension = \"ewvm\"\n", extension: ".toml"},
		{data: "[compiler\n", extension: ".toml"},
		{data: "compiler: [", extension: ".yml"},
		{data: "{}", extension: ".json"},
	}
	for _, testD := range testData {
		_, err := Parse([]byte(testD.data), testD.extension)
		assert.Error(t, err, testD.data)
	}
	_, err := Parse(nil, ".ini")
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestLoadAndDiscover(t *testing.T) {
	dir := t.TempDir()
	_, ok := Discover(dir)
	assert.False(t, ok)

	yamlPath := filepath.Join(dir, "plpc.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("log:\n  level: info\n"), 0o644))
	tomlPath := filepath.Join(dir, "plpc.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("[log]\nlevel = \"error\"\n"), 0o644))

	path, ok := Discover(dir)
	assert.True(t, ok)
	assert.Equal(t, tomlPath, path)

	config, err := Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, log.InfoLevel, config.LogLevel())

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}
