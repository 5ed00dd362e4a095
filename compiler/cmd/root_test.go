package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sumProgram = "program t; var x: integer; begin x := 1 + 2 end."

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, dir, "plpc.toml", "[compiler]\ncomments = false\n")
	source := writeFile(t, dir, "sum.pas", sumProgram)
	expected := "START\n  PUSHI 0\n  PUSHI 1\n  PUSHI 2\n  ADD\n  STOREG 0\n  STOP\n"

	testData := []struct {
		args  []string
		stdin string
	}{
		{args: []string{"build", "--config", configPath, "-o", "-", source}},
		{args: []string{"build", "--config", configPath, "--no-optimize", "-"}, stdin: sumProgram},
	}
	for _, testD := range testData {
		stdout, _, err := execute(t, testD.stdin, testD.args...)
		require.NoError(t, err)
		assert.Equal(t, expected, stdout)
	}
}

func TestBuild_DefaultOutput(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "sum.pas", sumProgram)
	_, _, err := execute(t, "", "build", "--emit-comments", source)
	require.NoError(t, err)
	output, err := os.ReadFile(filepath.Join(dir, "sum.ewvm"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(output), "START\n"))
	assert.Contains(t, string(output), "// var x: integer")
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.pas", sumProgram)
	bad := writeFile(t, dir, "bad.pas", "program t;\nbegin\n  y := 1\nend.\n")

	_, _, err := execute(t, "", "check", good)
	assert.NoError(t, err)

	_, stderr, err := execute(t, "", "check", good, bad)
	assert.EqualError(t, err, "1 of 2 files failed to compile")
	assert.Contains(t, stderr, "bad.pas:3:3: error: Object 'y' not found")
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "double.pas", "program d; var n: integer; begin readln(n); writeln(n * 2) end.")
	assembly := writeFile(t, dir, "hello.ewvm", "START\n  PUSHS \"hello\"\n  WRITES\n  WRITELN\n  STOP\n")

	testData := []struct {
		args           []string
		stdin          string
		expectedOutput string
	}{
		{args: []string{"run", source}, stdin: "21\n", expectedOutput: "42\n"},
		{args: []string{"run", assembly}, expectedOutput: "hello\n"},
	}
	for _, testD := range testData {
		stdout, _, err := execute(t, testD.stdin, testD.args...)
		require.NoError(t, err)
		assert.Equal(t, testD.expectedOutput, stdout)
	}
}

func TestRun_StepLimit(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "loop.pas", "program l; begin while true do writeln end.")
	_, _, err := execute(t, "", "run", "--step-limit", "100", source)
	assert.Error(t, err)
}

func TestOptimize(t *testing.T) {
	stdout, _, err := execute(t, "START\n  PUSHI 0\n  PUSHI 0\n  PUSHI 0\n  STOP\n", "optimize", "-")
	require.NoError(t, err)
	assert.Equal(t, "START\n  PUSHN 3\n  STOP\n", stdout)
}

func TestInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, dir, "plpc.yaml", "diagnostics:\n  color: rainbow\n")
	_, _, err := execute(t, "", "check", "--config", configPath, "x.pas")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "plpc v"+Version)
}
