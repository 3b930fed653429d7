package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	clilib "github.com/urfave/cli/v2"
)

func writeCheckFixture(t *testing.T, templates map[string]string) string {
	t.Helper()

	root := t.TempDir()
	templatesDir := filepath.Join(root, "templates")
	if err := os.MkdirAll(templatesDir, 0755); err != nil {
		t.Fatal(err)
	}
	for name, content := range templates {
		if err := os.WriteFile(filepath.Join(templatesDir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	configPath := filepath.Join(root, "glazed.config.yml")
	config := fmt.Sprintf("templatesDir: %s\nstaticDir: %s\noutputDir: %s\n",
		templatesDir, filepath.Join(root, "static"), filepath.Join(root, "cache"))
	if err := os.WriteFile(configPath, []byte(config), 0644); err != nil {
		t.Fatal(err)
	}
	return configPath
}

func runCheck(configPath string) error {
	app := &clilib.App{Commands: []*clilib.Command{CheckCommand}}
	return app.Run([]string{"glazed", "check", "--config", configPath})
}

func TestCheckCommand_ValidTemplates(t *testing.T) {
	configPath := writeCheckFixture(t, map[string]string{
		"index.html": `<h1>{{ .Path }}</h1>`,
	})

	var err error
	output := captureOutput(func() {
		err = runCheck(configPath)
	})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !strings.Contains(output, "index.html") {
		t.Errorf("expected template listed, got %q", output)
	}
	if !strings.Contains(output, "All templates validated successfully") {
		t.Errorf("expected success summary, got %q", output)
	}
}

func TestCheckCommand_FailingTemplate(t *testing.T) {
	configPath := writeCheckFixture(t, map[string]string{
		"index.html":  `ok`,
		"broken.html": `{{ template "does-not-exist" }}`,
	})

	origExiter := clilib.OsExiter
	var exitCode int
	clilib.OsExiter = func(code int) { exitCode = code }
	defer func() { clilib.OsExiter = origExiter }()

	var err error
	output := captureOutput(func() {
		err = runCheck(configPath)
	})

	if err == nil {
		t.Fatal("expected failure for broken template")
	}
	if exitCode != 1 {
		t.Errorf("expected exit code 1, got %d", exitCode)
	}
	if !strings.Contains(output, "broken.html") {
		t.Errorf("expected failing template named, got %q", output)
	}
}

func TestCheckCommand_MissingConfig(t *testing.T) {
	origExiter := clilib.OsExiter
	clilib.OsExiter = func(code int) {}
	defer func() { clilib.OsExiter = origExiter }()

	if err := runCheck(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Error("expected error for missing config")
	}
}
