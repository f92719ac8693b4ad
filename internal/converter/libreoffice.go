package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrProtected is returned for password protected documents.
var ErrProtected = errors.New("document is password protected")

// LibreOffice converts office documents to PDF with a headless soffice
// process per conversion.
type LibreOffice struct {
	binary    string
	timeout   time.Duration
	semaphore chan struct{}
}

// Job represents a document conversion job
type Job struct {
	InputPath  string
	OutputPath string
	Timeout    time.Duration
}

// Result represents the result of a conversion operation
type Result struct {
	Success     bool
	OutputPath  string
	Error       string
	Duration    time.Duration
	IsProtected bool
}

// NewLibreOffice returns a converter running at most maxWorkers conversions
// at once.
func NewLibreOffice(binary string, maxWorkers int, timeout time.Duration) *LibreOffice {
	if binary == "" {
		binary = "libreoffice"
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	return &LibreOffice{
		binary:    binary,
		timeout:   timeout,
		semaphore: make(chan struct{}, maxWorkers),
	}
}

// Available reports whether the binary is on PATH.
func (l *LibreOffice) Available() bool {
	_, err := exec.LookPath(l.binary)
	return err == nil
}

// Version returns the installed version string.
func (l *LibreOffice) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, l.binary, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("LibreOffice not found in PATH: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// ToPDF converts in into outDir and returns the written path.
func (l *LibreOffice) ToPDF(ctx context.Context, in, outDir string) (string, error) {
	res := l.ConvertToPDF(ctx, Job{InputPath: in, OutputPath: filepath.Join(outDir, pdfName(in))})
	if res.IsProtected {
		return "", ErrProtected
	}
	if !res.Success {
		return "", errors.New(res.Error)
	}
	return res.OutputPath, nil
}

// ConvertToPDF converts a document to PDF format
func (l *LibreOffice) ConvertToPDF(ctx context.Context, job Job) Result {
	startTime := time.Now()

	select {
	case l.semaphore <- struct{}{}:
	case <-ctx.Done():
		return Result{Error: ctx.Err().Error(), Duration: time.Since(startTime)}
	}
	defer func() { <-l.semaphore }()

	log.Info().Str("input", job.InputPath).Str("output", job.OutputPath).Msg("starting conversion")

	if err := validateInput(job.InputPath); err != nil {
		return Result{
			Error:    fmt.Sprintf("input validation failed: %v", err),
			Duration: time.Since(startTime),
		}
	}

	timeout := job.Timeout
	if timeout == 0 {
		timeout = l.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if l.isProtected(ctx, job.InputPath) {
		return Result{
			Error:       ErrProtected.Error(),
			Duration:    time.Since(startTime),
			IsProtected: true,
		}
	}

	// A private profile lets conversions run side by side.
	profileDir := filepath.Join(os.TempDir(), fmt.Sprintf("libreoffice_profile_%s", uuid.New().String()))
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		return Result{
			Error:    fmt.Sprintf("failed to create profile directory: %v", err),
			Duration: time.Since(startTime),
		}
	}
	defer os.RemoveAll(profileDir)

	outputDir := filepath.Dir(job.OutputPath)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Result{
			Error:    fmt.Sprintf("failed to create output directory: %v", err),
			Duration: time.Since(startTime),
		}
	}

	cmd := exec.CommandContext(ctx,
		l.binary,
		fmt.Sprintf("-env:UserInstallation=file://%s", profileDir),
		"--headless",
		"--convert-to", "pdf",
		"--outdir", outputDir,
		job.InputPath,
	)
	log.Debug().Str("cmd", strings.Join(cmd.Args, " ")).Msg("LibreOffice command")

	if out, err := cmd.CombinedOutput(); err != nil {
		msg := fmt.Sprintf("conversion failed: %v", err)
		if ctx.Err() == context.DeadlineExceeded {
			msg = fmt.Sprintf("conversion timeout after %v", timeout)
		}
		log.Debug().Str("output", string(out)).Msg("LibreOffice output")
		return Result{Error: msg, Duration: time.Since(startTime)}
	}

	// LibreOffice names the output after the input file.
	actualOutput := job.OutputPath
	expectedOutput := filepath.Join(outputDir, pdfName(job.InputPath))
	if expectedOutput != actualOutput {
		if err := os.Rename(expectedOutput, actualOutput); err != nil {
			log.Warn().Err(err).Str("from", expectedOutput).Str("to", actualOutput).Msg("failed to rename")
			actualOutput = expectedOutput
		}
	}

	if _, err := os.Stat(actualOutput); err != nil {
		return Result{
			Error:    fmt.Sprintf("output file not created: %v", err),
			Duration: time.Since(startTime),
		}
	}

	log.Info().Str("output", actualOutput).Dur("duration", time.Since(startTime)).Msg("conversion successful")
	return Result{Success: true, OutputPath: actualOutput, Duration: time.Since(startTime)}
}

func validateInput(filePath string) error {
	info, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("file not found: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file")
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is empty")
	}
	return nil
}

// isProtected asks LibreOffice to dump the document; a failure mentioning a
// password means the workbook is encrypted.
func (l *LibreOffice) isProtected(ctx context.Context, filePath string) bool {
	output, err := exec.CommandContext(ctx, l.binary, "--headless", "--cat", filePath).CombinedOutput()
	if err == nil {
		return false
	}
	s := strings.ToLower(string(output))
	return strings.Contains(s, "password") || strings.Contains(s, "encrypted") || strings.Contains(s, "protected")
}

func pdfName(inputPath string) string {
	base := filepath.Base(inputPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".pdf"
}
