// Package validator shells out to the KoSIT validation tool to check
// serialized invoices against the XRechnung scenario rules.
package validator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Status classifies a validation run.
type Status string

const (
	// StatusValid means the document conforms to the scenario rules.
	StatusValid Status = "valid"
	// StatusInvalid means the tool ran and rejected the document.
	StatusInvalid Status = "invalid"
	// StatusToolFailure means the tool could not be run or misbehaved;
	// nothing is known about the document itself.
	StatusToolFailure Status = "tool_failure"
)

// Exit codes of the KoSIT validator. The JVM reports negative exit codes
// modulo 256, so -1 arrives as 255 and -2 as 254.
const (
	exitInvocationError = 255
	exitConfigError     = 254
)

// Result is the outcome of one validation run.
type Result struct {
	Status     Status `json:"status"`
	ExitCode   int    `json:"exit_code"`
	ReportXML  string `json:"report_xml,omitempty"`
	ReportHTML string `json:"report_html,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// Conformant reports whether the document passed validation.
func (r Result) Conformant() bool {
	return r.Status == StatusValid
}

// Validator checks a serialized invoice document.
type Validator interface {
	Validate(ctx context.Context, documentPath string) (*Result, error)
}

// Config locates the KoSIT tool and its scenario configuration.
type Config struct {
	// JavaBin is the java executable, "java" when empty.
	JavaBin string
	// JarPath is the validationtool jar.
	JarPath string
	// ScenarioConfig is the scenarios.xml of the XRechnung configuration.
	ScenarioConfig string
	// Repository is the scenario repository directory.
	Repository string
	// OutputDir receives the validation reports. A temporary directory is
	// used when empty.
	OutputDir string
	// Timeout bounds one validation run, 60s when zero.
	Timeout time.Duration
}

// KoSIT runs the KoSIT validation tool as a subprocess.
type KoSIT struct {
	cfg    Config
	logger zerolog.Logger
}

// NewKoSIT creates a KoSIT validator. JarPath and ScenarioConfig must point at
// an installed validator configuration.
func NewKoSIT(cfg Config, logger zerolog.Logger) *KoSIT {
	if cfg.JavaBin == "" {
		cfg.JavaBin = "java"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &KoSIT{cfg: cfg, logger: logger}
}

// Validate runs the tool against documentPath and classifies the exit code.
// Tool-level failures (missing binary, timeout, broken configuration) are
// reported as StatusToolFailure, never as a verdict about the document.
func (k *KoSIT) Validate(ctx context.Context, documentPath string) (*Result, error) {
	if _, err := os.Stat(documentPath); err != nil {
		return nil, fmt.Errorf("document not readable: %w", err)
	}

	outputDir := k.cfg.OutputDir
	if outputDir == "" {
		dir, err := os.MkdirTemp("", "kosit-report-*")
		if err != nil {
			return nil, fmt.Errorf("create report directory: %w", err)
		}
		outputDir = dir
	}

	ctx, cancel := context.WithTimeout(ctx, k.cfg.Timeout)
	defer cancel()

	args := []string{
		"-jar", k.cfg.JarPath,
		"-s", k.cfg.ScenarioConfig,
		"-r", k.cfg.Repository,
		"--output-directory", outputDir,
		"-h",
		documentPath,
	}
	cmd := exec.CommandContext(ctx, k.cfg.JavaBin, args...)
	output, err := cmd.CombinedOutput()

	k.logger.Debug().
		Str("document", documentPath).
		Str("java", k.cfg.JavaBin).
		Msg("kosit validator finished")

	result := &Result{
		ReportXML:  reportPath(outputDir, documentPath, "-report.xml"),
		ReportHTML: reportPath(outputDir, documentPath, "-report.html"),
	}

	if ctx.Err() == context.DeadlineExceeded {
		result.Status = StatusToolFailure
		result.ExitCode = -1
		result.Detail = "validator timed out"
		return result, nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// java missing or not executable
			result.Status = StatusToolFailure
			result.ExitCode = -1
			result.Detail = err.Error()
			return result, nil
		}
		result.ExitCode = exitErr.ExitCode()
	}

	switch code := result.ExitCode; {
	case code == 0:
		result.Status = StatusValid
	case code == exitInvocationError:
		result.Status = StatusToolFailure
		result.Detail = "validator invocation error: " + firstLine(output)
	case code == exitConfigError:
		result.Status = StatusToolFailure
		result.Detail = "validator configuration error: " + firstLine(output)
	case code > 0:
		result.Status = StatusInvalid
		result.Detail = firstLine(output)
	default:
		result.Status = StatusToolFailure
		result.Detail = fmt.Sprintf("unexpected exit code %d", code)
	}

	if result.Status == StatusToolFailure {
		k.logger.Warn().
			Int("exit_code", result.ExitCode).
			Str("detail", result.Detail).
			Msg("kosit validator tool failure")
	}
	return result, nil
}

// reportPath derives the report file the tool writes for a document:
// <output>/<name without extension><suffix>.
func reportPath(outputDir, documentPath, suffix string) string {
	base := filepath.Base(documentPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, base+suffix)
}

func firstLine(output []byte) string {
	s := strings.TrimSpace(string(output))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
