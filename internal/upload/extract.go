package upload

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// maxTextBytes caps the text kept from one upload.
const maxTextBytes = 64 << 10

// mediaType resolves the content type of an upload. Generic or missing
// types fall back to the file extension, then to content sniffing.
func mediaType(contentType, name string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt != "application/octet-stream" {
		return mt
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return "text/markdown"
	case ".csv":
		return "text/csv"
	}
	if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
		if mt, _, err := mime.ParseMediaType(byExt); err == nil {
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}

// Extract returns the readable text of a file. Types without a text form
// yield "".
func Extract(contentType string, data []byte) (string, error) {
	var text string
	switch {
	case contentType == "application/pdf":
		t, err := pdfText(data)
		if err != nil {
			return "", fmt.Errorf("reading pdf: %w", err)
		}
		text = t
	case contentType == "text/html" || contentType == "application/xhtml+xml":
		t, err := htmlText(data)
		if err != nil {
			return "", fmt.Errorf("reading html: %w", err)
		}
		text = t
	case strings.HasPrefix(contentType, "text/"), contentType == "application/json":
		text = strings.ToValidUTF8(string(data), "")
	default:
		return "", nil
	}
	return truncate(strings.TrimSpace(text), maxTextBytes), nil
}

func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(plain, 4*maxTextBytes)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func htmlText(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	collectText(doc, &sb, 0)

	lines := strings.Split(sb.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n"), nil
}

func collectText(n *html.Node, sb *strings.Builder, depth int) {
	if depth > 100 {
		return
	}
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		sb.WriteString(" ")
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "template", "svg":
			return
		case "p", "div", "br", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6", "section", "article":
			sb.WriteString("\n")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb, depth+1)
	}
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
