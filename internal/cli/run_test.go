package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mdclip/internal/app/apptest"
	"mdclip/internal/config"
	"mdclip/internal/store"
)

func setupEnv(t *testing.T, configure func(*config.Settings)) (dataDir string, pageURL string) {
	t.Helper()

	server := apptest.StartServer(t)
	dataDir = t.TempDir()
	apptest.WriteSettings(t, dataDir, configure)

	t.Setenv("MDCLIP_DATA_DIR", dataDir)
	t.Setenv("MDCLIP_ENVIRONMENT", "test")
	t.Setenv("MDCLIP_LOG_LEVEL", "error")
	t.Setenv("MDCLIP_ANTHROPIC_BASE_URL", server.URL)
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("DATABASE_URL", "")

	return dataDir, server.URL + "/articles/field-guide"
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := Run(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRunVersion(t *testing.T) {
	stdout, _, err := run(t, "version")
	if err != nil {
		t.Fatalf("Run(version) error = %v", err)
	}
	if !strings.HasPrefix(stdout, "mdclip version=") {
		t.Fatalf("version output = %q", stdout)
	}
}

func TestRunSaveTranslateShowExportDelete(t *testing.T) {
	dataDir, pageURL := setupEnv(t, nil)

	stdout, stderr, err := run(t, "save", pageURL)
	if err != nil {
		t.Fatalf("save error = %v; stderr=%s", err, stderr)
	}
	if !strings.Contains(stdout, "Saved: 1 "+pageURL) {
		t.Fatalf("save output = %q", stdout)
	}

	stdout, _, err = run(t, "list")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(stdout, "Field Guide") || !strings.HasPrefix(stdout, "ID") {
		t.Fatalf("list output = %q", stdout)
	}

	stdout, stderr, err = run(t, "translate", "1")
	if err != nil {
		t.Fatalf("translate error = %v; stderr=%s", err, stderr)
	}
	if !strings.Contains(stdout, "Translated: 1 (") {
		t.Fatalf("translate output = %q", stdout)
	}
	if !strings.Contains(stderr, "100%") || !strings.Contains(stderr, "[1/") {
		t.Fatalf("translate progress = %q", stderr)
	}

	stdout, _, err = run(t, "show", "1", "--translated")
	if err != nil {
		t.Fatalf("show --translated error = %v", err)
	}
	if !strings.HasPrefix(stdout, apptest.TranslationPrefix) {
		t.Fatalf("translated markdown = %q", stdout)
	}

	archive := filepath.Join(dataDir, "exports", "one.zip")
	if _, _, err := run(t, "export", "1", "--out", archive); err != nil {
		t.Fatalf("export error = %v", err)
	}
	if info, err := os.Stat(archive); err != nil || info.Size() == 0 {
		t.Fatalf("archive stat = %v, %v", info, err)
	}

	stdout, _, err = run(t, "stats")
	if err != nil {
		t.Fatalf("stats error = %v", err)
	}
	if !strings.Contains(stdout, "Translated:   1") {
		t.Fatalf("stats output = %q", stdout)
	}

	if _, _, err := run(t, "delete", "1"); err != nil {
		t.Fatalf("delete error = %v", err)
	}
	_, _, err = run(t, "show", "1")
	if !errors.Is(err, store.ErrArticleNotFound) {
		t.Fatalf("show after delete error = %v, want ErrArticleNotFound", err)
	}
}

func TestRunClearRequiresConfirmation(t *testing.T) {
	_, pageURL := setupEnv(t, nil)
	if _, _, err := run(t, "save", pageURL); err != nil {
		t.Fatalf("save error = %v", err)
	}

	if _, _, err := run(t, "clear"); err == nil {
		t.Fatal("clear without --yes succeeded, want error")
	}
	if _, _, err := run(t, "clear", "--yes"); err != nil {
		t.Fatalf("clear error = %v", err)
	}

	stdout, _, err := run(t, "stats")
	if err != nil {
		t.Fatalf("stats error = %v", err)
	}
	if !strings.Contains(stdout, "Articles:     0") {
		t.Fatalf("stats output = %q", stdout)
	}
}

func TestRunSaveContinuesAfterFailure(t *testing.T) {
	_, pageURL := setupEnv(t, nil)
	missing := strings.Replace(pageURL, "field-guide", "missing", 1)

	stdout, stderr, err := run(t, "save", missing, pageURL)
	if err == nil || err.Error() != "1 URL(s) failed" {
		t.Fatalf("save error = %v, want 1 URL(s) failed", err)
	}
	if !strings.Contains(stderr, "Failed: "+missing) {
		t.Fatalf("stderr = %q", stderr)
	}
	if !strings.Contains(stdout, "Done: 1 succeeded, 1 failed") {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestRunSaveAutoTranslates(t *testing.T) {
	_, pageURL := setupEnv(t, func(s *config.Settings) { s.AutoTranslate = true })

	stdout, stderr, err := run(t, "save", pageURL)
	if err != nil {
		t.Fatalf("save error = %v; stderr=%s", err, stderr)
	}
	if !strings.Contains(stdout, "Translated: 1 (") {
		t.Fatalf("save output = %q, want auto translation", stdout)
	}
}

func TestRunTranslateDisabledShowsGuidance(t *testing.T) {
	_, pageURL := setupEnv(t, func(s *config.Settings) { s.EnableTranslation = false })

	if _, _, err := run(t, "save", pageURL); err != nil {
		t.Fatalf("save error = %v", err)
	}
	_, _, err := run(t, "translate", "1")
	if err == nil {
		t.Fatal("translate error = nil, want configuration error")
	}
	if !strings.Contains(err.Error(), "[configuration]") || !strings.Contains(err.Error(), "enable_translation") {
		t.Fatalf("translate error = %q", err.Error())
	}
}

func TestRunSettingsSetShowAndResetPrompt(t *testing.T) {
	dataDir, _ := setupEnv(t, nil)

	if _, _, err := run(t, "settings", "set", "model", "claude-test"); err != nil {
		t.Fatalf("settings set error = %v", err)
	}
	if _, _, err := run(t, "settings", "set", "no_such_key", "x"); err == nil {
		t.Fatal("settings set unknown key error = nil")
	}

	stdout, _, err := run(t, "settings", "show")
	if err != nil {
		t.Fatalf("settings show error = %v", err)
	}
	if !strings.Contains(stdout, "model: claude-test") {
		t.Fatalf("settings show = %q", stdout)
	}
	if strings.Contains(stdout, apptest.APIKey) {
		t.Fatalf("settings show leaked the API key: %q", stdout)
	}

	if _, _, err := run(t, "settings", "reset-prompt"); err != nil {
		t.Fatalf("reset-prompt error = %v", err)
	}
	settings, err := config.LoadSettings(filepath.Join(dataDir, "settings.yaml"))
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if settings.PromptTemplate != "" || settings.Model != "claude-test" {
		t.Fatalf("settings = %+v", settings)
	}
}

func TestParseArticleID(t *testing.T) {
	t.Parallel()

	if id, err := parseArticleID(" 42 "); err != nil || id != 42 {
		t.Fatalf("parseArticleID(42) = %d, %v", id, err)
	}
	for _, raw := range []string{"0", "-1", "abc", ""} {
		if _, err := parseArticleID(raw); !errors.Is(err, store.ErrInvalidID) {
			t.Fatalf("parseArticleID(%q) error = %v, want ErrInvalidID", raw, err)
		}
	}
}

func TestRenderArticleTableAlignsWideTitles(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	renderArticleTable(&buf, []store.Article{
		{ID: 12, Metadata: store.Metadata{Title: "日本語のタイトル", Language: "ja", Timestamp: ts}, HasTranslation: true},
		{ID: 3, Metadata: store.Metadata{Title: "English", Timestamp: ts}, ImageCount: 2},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3: %q", len(lines), buf.String())
	}
	titleCol := strings.Index(lines[0], "TITLE")
	for _, line := range lines[1:] {
		if !strings.HasPrefix(line[titleCol:], "日本語") && !strings.HasPrefix(line[titleCol:], "English") {
			t.Fatalf("title column misaligned in %q", line)
		}
	}
	if !strings.Contains(lines[2], "-   ") {
		t.Fatalf("missing language placeholder in %q", lines[2])
	}
}
