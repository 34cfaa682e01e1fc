package qa

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/beevik/etree"
	pdf "github.com/dslipak/pdf"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/net/html"
)

const (
	downloadTimeout = 30 * time.Second
	// Some origins refuse non-browser clients.
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	// Raw-text fallback is only trusted above this size; anything shorter is
	// more likely binary garbage that happened to decode.
	minFallbackChars = 100
)

// DocumentLoader downloads a document and extracts its plain text. The real
// format is sniffed from the bytes, never trusted from the URL alone, and the
// downloaded temp file is removed on every exit path.
type DocumentLoader struct {
	client    *http.Client
	userAgent string
}

func NewDocumentLoader() *DocumentLoader {
	return &DocumentLoader{
		client:    &http.Client{Timeout: downloadTimeout},
		userAgent: browserUserAgent,
	}
}

// Load fetches the document at url and returns its plain text. Every failure
// comes back as a single ELOAD error carrying the URL and the original cause.
func (l *DocumentLoader) Load(ctx context.Context, url string) (string, error) {
	path, err := l.download(ctx, url)
	if err != nil {
		return "", WrapError(ELOAD, err, "load document from %s", url)
	}
	defer func() {
		if rerr := os.Remove(path); rerr != nil {
			log.Printf("could not remove temp file %s: %v", path, rerr)
		}
	}()

	text, err := l.extract(path, url)
	if err != nil {
		return "", WrapError(ELOAD, err, "load document from %s", url)
	}
	return text, nil
}

func (l *DocumentLoader) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", l.userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	tmp, err := os.CreateTemp("", "docretrieve-*")
	if err != nil {
		return "", err
	}

	n, err := io.Copy(tmp, resp.Body)
	cerr := tmp.Close()
	if err != nil || cerr != nil {
		os.Remove(tmp.Name())
		if err == nil {
			err = cerr
		}
		return "", err
	}

	log.Printf("downloaded %d bytes from %s", n, url)
	return tmp.Name(), nil
}

func (l *DocumentLoader) extract(path, url string) (string, error) {
	switch detectFileType(path, url) {
	case "pdf":
		text, err := extractPDFText(path)
		if err != nil {
			log.Printf("pdf extraction failed, trying fallback: %v", err)
			return extractTextFallback(path)
		}
		return text, nil

	case "docx", "doc":
		text, err := extractDOCXText(path)
		if err == nil {
			return text, nil
		}
		log.Printf("docx extraction failed, trying as pdf: %v", err)
		if text, err = extractPDFText(path); err == nil {
			return text, nil
		}
		log.Printf("pdf fallback failed, trying text fallback: %v", err)
		return extractTextFallback(path)

	default:
		if text, err := extractPDFText(path); err == nil {
			return text, nil
		}
		if text, err := extractDOCXText(path); err == nil {
			return text, nil
		}
		return extractTextFallback(path)
	}
}

// detectFileType resolves the document format, in priority order: URL
// extension, local extension, magic bytes, MIME sniffing, then pdf as the
// default guess.
func detectFileType(path, url string) string {
	switch lower := strings.ToLower(url); {
	case strings.HasSuffix(lower, ".pdf"):
		return "pdf"
	case strings.HasSuffix(lower, ".docx"), strings.HasSuffix(lower, ".doc"):
		return "docx"
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "pdf"
	case ".docx", ".doc":
		return "docx"
	}

	if f, err := os.Open(path); err == nil {
		header := make([]byte, 8)
		n, _ := io.ReadFull(f, header)
		f.Close()
		header = header[:n]

		switch {
		case bytes.HasPrefix(header, []byte("%PDF")):
			return "pdf"
		case bytes.HasPrefix(header, []byte("PK")):
			return "docx"
		case bytes.HasPrefix(header, []byte{0xd0, 0xcf, 0x11, 0xe0}):
			return "doc"
		}
	}

	if mtype, err := mimetype.DetectFile(path); err == nil {
		s := strings.ToLower(mtype.String())
		switch {
		case strings.Contains(s, "pdf"):
			return "pdf"
		case strings.Contains(s, "word"), strings.Contains(s, "officedocument"):
			return "docx"
		}
	}

	return "pdf"
}

// extractPDFText pulls text page by page. A failed page is logged and
// skipped; the whole document fails only when no page yields any text.
func extractPDFText(path string) (string, error) {
	r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, perr := p.GetPlainText(nil)
		if perr != nil {
			log.Printf("error extracting page %d: %v", i, perr)
			continue
		}
		if strings.TrimSpace(pageText) != "" {
			b.WriteString(pageText)
			b.WriteString("\n")
		}
	}

	text := sanitizeUTF8(strings.TrimSpace(b.String()))
	if text == "" {
		return "", fmt.Errorf("no text could be extracted from pdf")
	}
	return text, nil
}

// extractDOCXText opens the zip container and joins the non-empty paragraph
// texts of word/document.xml with newlines.
func extractDOCXText(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("not a valid docx container: %w", err)
	}
	defer zr.Close()

	var docXML []byte
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, oerr := f.Open()
			if oerr != nil {
				return "", oerr
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return "", err
			}
			break
		}
	}
	if docXML == nil {
		return "", fmt.Errorf("word/document.xml not found in container")
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(docXML); err != nil {
		return "", err
	}

	root := doc.Root()
	if root == nil {
		return "", fmt.Errorf("empty document.xml")
	}

	var paragraphs []string
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		if e.Tag == "p" {
			if s := strings.TrimSpace(paragraphText(e)); s != "" {
				paragraphs = append(paragraphs, s)
			}
			return
		}
		for _, c := range e.ChildElements() {
			walk(c)
		}
	}
	walk(root)
	if len(paragraphs) == 0 {
		return "", fmt.Errorf("no text content found in docx")
	}

	return sanitizeUTF8(strings.Join(paragraphs, "\n")), nil
}

// paragraphText concatenates the w:t runs under one w:p element.
func paragraphText(p *etree.Element) string {
	var b strings.Builder
	var collect func(e *etree.Element)
	collect = func(e *etree.Element) {
		if e.Tag == "t" {
			b.WriteString(e.Text())
		}
		for _, c := range e.ChildElements() {
			collect(c)
		}
	}
	collect(p)
	return b.String()
}

// extractTextFallback is the last resort: strip tags when the payload looks
// like HTML, otherwise decode as UTF-8 and then Latin-1, accepting the result
// only when it is long enough to plausibly be the document text.
func extractTextFallback(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	if looksLikeHTML(data) {
		if text := htmlToText(string(data)); len(strings.TrimSpace(text)) > minFallbackChars {
			return text, nil
		}
	}

	if text := sanitizeUTF8(string(data)); len(strings.TrimSpace(text)) > minFallbackChars {
		return text, nil
	}

	if text := decodeLatin1(data); len(strings.TrimSpace(text)) > minFallbackChars {
		return text, nil
	}

	return "", fmt.Errorf("could not extract text using any method")
}

func looksLikeHTML(data []byte) bool {
	head := strings.ToLower(string(bytes.TrimSpace(data)))
	if len(head) > 256 {
		head = head[:256]
	}
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

// htmlToText walks the parse tree collecting text nodes, skipping
// script/style subtrees.
func htmlToText(htmlStr string) string {
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return ""
	}

	var b strings.Builder
	var walk func(*html.Node, bool)
	walk = func(n *html.Node, skip bool) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				skip = true
			}
		}
		if n.Type == html.TextNode && !skip {
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t)
				b.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, skip)
		}
	}
	walk(doc, false)

	var filtered []string
	for _, line := range strings.Split(b.String(), "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 1 {
			filtered = append(filtered, line)
		}
	}
	return sanitizeUTF8(strings.Join(filtered, "\n"))
}

func decodeLatin1(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		b.WriteRune(rune(c))
	}
	return b.String()
}

// sanitizeUTF8 drops invalid bytes so downstream prompts stay valid UTF-8.
func sanitizeUTF8(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError && size == 1 {
			s = s[1:]
			continue
		}
		b.WriteRune(r)
		s = s[size:]
	}
	return b.String()
}
