package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestSupported(t *testing.T) {
	for _, ext := range []string{".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx", ".PDF"} {
		if !Supported(ext) {
			t.Errorf("Supported(%q)=false", ext)
		}
	}
	for _, ext := range []string{".exe", ".png", ""} {
		if Supported(ext) {
			t.Errorf("Supported(%q)=true", ext)
		}
	}
}

func TestText_Plain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	if err := os.WriteFile(path, []byte("# heading\nbody text"), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := Text(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != "# heading\nbody text" {
		t.Errorf("got %q", got)
	}
}

func TestTextFromBytes_InvalidUTF8(t *testing.T) {
	got, err := TextFromBytes([]byte{'o', 'k', 0xff, 0xfe}, ".txt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "ok") {
		t.Errorf("got %q", got)
	}
	if strings.Contains(got, "\xff") {
		t.Error("invalid bytes not replaced")
	}
}

func TestTextFromBytes_Unsupported(t *testing.T) {
	_, err := TextFromBytes([]byte("data"), ".bin")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

// buildDocx builds a minimal .docx archive with the given document XML body.
func buildDocx(t *testing.T, bodyXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte(bodyXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDocxText(t *testing.T) {
	body := `<?xml version="1.0"?><w:document><w:body>` +
		`<w:p w:rsidR="00A"><w:r><w:t>Hello</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t xml:space="preserve">world &amp; more</w:t></w:r></w:p>` +
		`</w:body></w:document>`
	got, err := TextFromBytes(buildDocx(t, body), ".docx")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Hello world & more" {
		t.Errorf("got %q", got)
	}
}

func TestDocxText_NotZip(t *testing.T) {
	if _, err := TextFromBytes([]byte("plain bytes"), ".docx"); err == nil {
		t.Fatal("expected error for non-zip docx")
	}
}

func TestDocxText_MissingBody(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, _ := zw.Create("unrelated.xml")
	_, _ = f.Write([]byte("<x/>"))
	_ = zw.Close()
	if _, err := TextFromBytes(buf.Bytes(), ".docx"); err == nil {
		t.Fatal("expected error for docx without document body")
	}
}

func TestExcelText(t *testing.T) {
	f := excelize.NewFile()
	if err := f.SetSheetRow("Sheet1", "A1", &[]interface{}{"name", "count"}); err != nil {
		t.Fatal(err)
	}
	if err := f.SetSheetRow("Sheet1", "A2", &[]interface{}{"widgets", 7}); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}

	got, err := TextFromBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "name\tcount") || !strings.Contains(got, "widgets\t7") {
		t.Errorf("got %q", got)
	}
}
