package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/rs/zerolog/log"
)

type captured struct{ events []axiom.Event }

func (c *captured) Send(ev axiom.Event) { c.events = append(c.events, ev) }

func TestAxiomWriterDropsDebug(t *testing.T) {
	c := &captured{}
	w := &axiomWriter{client: c, service: "mtreport"}
	for _, line := range []string{
		`{"level":"debug","message":"page"}`,
		`{"level":"warn","message":"attachment missing"}`,
		`not json`,
	} {
		if _, err := w.Write([]byte(line)); err != nil {
			t.Fatal(err)
		}
	}
	if len(c.events) != 2 {
		t.Fatalf("forwarded %d events, want 2", len(c.events))
	}
	if c.events[0]["service"] != "mtreport" || c.events[1]["message"] != "not json" {
		t.Fatalf("events = %v", c.events)
	}
}

func TestInitWritesFileAndConsole(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "logs", "run.log")
	var console bytes.Buffer
	if err := Init(Options{Level: "warn", File: file, MaxSizeMB: 1, Console: &console}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer Close()

	log.Info().Msg("hidden")
	log.Warn().Str("file", "x.pdf").Msg("attachment missing")

	var ev map[string]any
	line := strings.TrimSpace(console.String())
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		t.Fatalf("console line %q: %v", line, err)
	}
	if ev["service"] != "mtreport" || ev["file"] != "x.pdf" {
		t.Fatalf("event = %v", ev)
	}
	b, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(b), "hidden") || !strings.Contains(string(b), "attachment missing") {
		t.Fatalf("file = %s", b)
	}
}
