package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func resetRenderState() {
	globalVars = nil
	dirEngine = nil
	embedEngine = nil
}

func TestRenderHTML_EmbeddedOnly(t *testing.T) {
	resetRenderState()
	if err := Initialize(map[string]interface{}{"siteName": "Embedded"}, ""); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	out, err := RenderHTML("mail/otp-code.html", map[string]interface{}{"otpCode": "123456", "expireMinutes": 5})
	if err != nil {
		t.Fatalf("RenderHTML returned error: %v", err)
	}
	if !strings.Contains(out, "123456") || !strings.Contains(out, "Embedded") {
		t.Fatalf("expected code and site name in output, got %q", out)
	}
}

func TestRenderHTML_EscapesValues(t *testing.T) {
	resetRenderState()
	if err := Initialize(nil, ""); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	out, err := RenderHTML("mail/attestation-returned", map[string]interface{}{"comment": "<script>x</script>"})
	if err != nil {
		t.Fatalf("RenderHTML returned error: %v", err)
	}
	if strings.Contains(out, "<script>") {
		t.Fatalf("comment should be escaped, got %q", out)
	}
}

func TestRenderHTML_DirOverridesEmbedded(t *testing.T) {
	resetRenderState()
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "mail")
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		t.Fatalf("failed to create subdirectory: %v", err)
	}
	content := "OVERRIDE_OTP"
	if err := os.WriteFile(filepath.Join(subDir, "otp-code.html"), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp template: %v", err)
	}

	if err := Initialize(map[string]interface{}{}, tmpDir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	out, err := RenderHTML("mail/otp-code", nil)
	if err != nil {
		t.Fatalf("RenderHTML returned error: %v", err)
	}
	if out != content {
		t.Fatalf("expected overridden content %q, got %q", content, out)
	}

	// templates missing from the directory come from the embedded set
	out, err = RenderHTML("mail/attestation-signed", map[string]interface{}{"numero": "ATT-1"})
	if err != nil {
		t.Fatalf("RenderHTML should fall back to embedded template, got error: %v", err)
	}
	if !strings.Contains(out, "ATT-1") {
		t.Fatalf("expected embedded template output, got %q", out)
	}
}

func TestInitialize_MissingDir(t *testing.T) {
	resetRenderState()
	if err := Initialize(nil, filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing template directory")
	}
}
