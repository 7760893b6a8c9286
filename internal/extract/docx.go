package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const docxBodyPath = "word/document.xml"

// textRunRe matches <w:t> runs with or without attributes, such as
// <w:t xml:space="preserve">. Runs carry the document's visible text.
var textRunRe = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)

// docxText pulls the text runs out of the main document part of a .docx
// archive and joins them with spaces.
func docxText(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open DOCX: not a zip archive: %w", err)
	}

	var body []byte
	for _, f := range zr.File {
		if f.Name != docxBodyPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open DOCX body: %w", err)
		}
		body, err = io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("read DOCX body: %w", err)
		}
		break
	}
	if body == nil {
		return "", fmt.Errorf("DOCX: %s not found in archive", docxBodyPath)
	}

	runs := textRunRe.FindAllSubmatch(body, -1)
	var b strings.Builder
	for _, run := range runs {
		text := strings.TrimSpace(string(run[1]))
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(unescapeXML(text))
	}
	return b.String(), nil
}

var xmlEntities = strings.NewReplacer(
	"&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'",
)

func unescapeXML(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return xmlEntities.Replace(s)
}
