package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"REPORT_INDEX_LINES", "REDIS_URL", "S3_BUCKET", "LIBREOFFICE_TIMEOUT", "PORT"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	if cfg.Report.LinesPerIndexPage != 35 {
		t.Fatalf("lines per index page = %d", cfg.Report.LinesPerIndexPage)
	}
	if cfg.Redis.URL != "" || cfg.Storage.Bucket != "" {
		t.Fatal("optional backends must default off")
	}
	if cfg.Converter.Timeout != 180*time.Second {
		t.Fatalf("timeout = %v", cfg.Converter.Timeout)
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("port = %s", cfg.Server.Port)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("REPORT_INDEX_LINES", "20")
	t.Setenv("REPORT_KEEP_WORK", "yes")
	t.Setenv("LIBREOFFICE_TIMEOUT", "bogus")
	t.Setenv("AXIOM_DATASET", "prod")
	cfg := FromEnv()
	if cfg.Report.LinesPerIndexPage != 20 || !cfg.Report.KeepWork {
		t.Fatalf("report = %+v", cfg.Report)
	}
	if cfg.Converter.Timeout != 180*time.Second {
		t.Fatalf("bad duration should fall back, got %v", cfg.Converter.Timeout)
	}
	if cfg.Axiom.Dataset != "prod_mtreport" {
		t.Fatalf("dataset = %s", cfg.Axiom.Dataset)
	}
}

func TestLoadDotEnvKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, ".env")
	if err := os.WriteFile(f, []byte("MTREPORT_TEST_A=file\nMTREPORT_TEST_B=file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MTREPORT_TEST_A", "env")
	os.Unsetenv("MTREPORT_TEST_B")
	t.Cleanup(func() { os.Unsetenv("MTREPORT_TEST_B") })

	LoadDotEnv(f, filepath.Join(dir, "missing.env"))
	if got := os.Getenv("MTREPORT_TEST_A"); got != "env" {
		t.Fatalf("A = %s", got)
	}
	if got := os.Getenv("MTREPORT_TEST_B"); got != "file" {
		t.Fatalf("B = %s", got)
	}
}
