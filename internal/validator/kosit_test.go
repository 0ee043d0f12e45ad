package validator

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubJava writes a fake java executable that exits with the given code.
func stubJava(t *testing.T, exitCode int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "java")
	script := "#!/bin/sh\nexit " + strconv.Itoa(exitCode) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func testDocument(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "invoice.xml")
	require.NoError(t, os.WriteFile(path, []byte("<Invoice/>"), 0644))
	return path
}

func newTestValidator(t *testing.T, exitCode int) *KoSIT {
	t.Helper()
	return NewKoSIT(Config{
		JavaBin:        stubJava(t, exitCode),
		JarPath:        "validationtool.jar",
		ScenarioConfig: "scenarios.xml",
		Repository:     "repo",
		OutputDir:      t.TempDir(),
	}, zerolog.Nop())
}

func TestValidateExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		status   Status
	}{
		{"conformant", 0, StatusValid},
		{"rejections", 3, StatusInvalid},
		{"invocation error", 255, StatusToolFailure},
		{"configuration error", 254, StatusToolFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestValidator(t, tt.exitCode)

			result, err := v.Validate(context.Background(), testDocument(t))
			require.NoError(t, err)

			assert.Equal(t, tt.status, result.Status)
			assert.Equal(t, tt.exitCode, result.ExitCode)
			assert.Equal(t, tt.exitCode == 0, result.Conformant())
		})
	}
}

func TestValidateMissingJava(t *testing.T) {
	v := NewKoSIT(Config{
		JavaBin:        filepath.Join(t.TempDir(), "no-such-java"),
		JarPath:        "validationtool.jar",
		ScenarioConfig: "scenarios.xml",
		OutputDir:      t.TempDir(),
	}, zerolog.Nop())

	result, err := v.Validate(context.Background(), testDocument(t))
	require.NoError(t, err)
	assert.Equal(t, StatusToolFailure, result.Status)
}

func TestValidateTimeout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "java")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nsleep 10\n"), 0755))

	v := NewKoSIT(Config{
		JavaBin:        path,
		JarPath:        "validationtool.jar",
		ScenarioConfig: "scenarios.xml",
		OutputDir:      t.TempDir(),
		Timeout:        100 * time.Millisecond,
	}, zerolog.Nop())

	result, err := v.Validate(context.Background(), testDocument(t))
	require.NoError(t, err)
	assert.Equal(t, StatusToolFailure, result.Status)
	assert.Contains(t, result.Detail, "timed out")
}

func TestValidateMissingDocument(t *testing.T) {
	v := newTestValidator(t, 0)

	_, err := v.Validate(context.Background(), filepath.Join(t.TempDir(), "missing.xml"))
	require.Error(t, err)
}

func TestReportPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "invoice-report.xml"),
		reportPath("out", "/tmp/work/invoice.xml", "-report.xml"))
	assert.Equal(t, filepath.Join("out", "invoice-report.html"),
		reportPath("out", "invoice.xml", "-report.html"))
}
