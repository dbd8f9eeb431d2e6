// Package parser extracts bookmark entries from browser exports and
// hand-written lists: Netscape bookmark HTML, JSON, YAML, and Markdown.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// Netscape exports put each link on a <DT><A HREF="..." ...>Title</A> line.
	anchorRe = regexp.MustCompile(`(?is)<a\s[^>]*?href\s*=\s*"([^"]*)"[^>]*>(.*?)</a>`)
	tagRe    = regexp.MustCompile(`<[^>]*>`)
	mdLinkRe = regexp.MustCompile(`\[([^\]]+)\]\((\S+?)\)`)
)

// Entry is one bookmark candidate. Fields are trimmed but not validated.
type Entry struct {
	Title string `json:"title" yaml:"title"`
	URL   string `json:"url" yaml:"url"`
}

// Extensions lists the file extensions Parse understands.
var Extensions = []string{".html", ".htm", ".json", ".yaml", ".yml", ".md"}

// Parse picks a format by file extension and returns the entries found.
func Parse(name string, data []byte) ([]Entry, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return ParseNetscape(data), nil
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".md":
		return ParseMarkdown(data), nil
	default:
		return nil, fmt.Errorf("parser: unsupported file type %q", filepath.Ext(name))
	}
}

// ParseNetscape extracts every anchor from a Netscape bookmark file. An
// anchor without text falls back to its URL as the title.
func ParseNetscape(data []byte) []Entry {
	var out []Entry
	for _, m := range anchorRe.FindAllSubmatch(data, -1) {
		href := strings.TrimSpace(html.UnescapeString(string(m[1])))
		if href == "" {
			continue
		}
		title := strings.TrimSpace(html.UnescapeString(tagRe.ReplaceAllString(string(m[2]), "")))
		if title == "" {
			title = href
		}
		out = append(out, Entry{Title: title, URL: href})
	}
	return out
}

// ParseJSON reads an array of {"title","url"} objects.
func ParseJSON(data []byte) ([]Entry, error) {
	var out []Entry
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parser: json: %w", err)
	}
	return trimAll(out), nil
}

// ParseYAML reads a sequence of title/url mappings.
func ParseYAML(data []byte) ([]Entry, error) {
	var out []Entry
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parser: yaml: %w", err)
	}
	return trimAll(out), nil
}

// ParseMarkdown collects [title](url) links, skipping any leading YAML
// frontmatter block.
func ParseMarkdown(data []byte) []Entry {
	body := stripFrontmatter(data)
	seen := make(map[string]struct{})
	var out []Entry
	for _, m := range mdLinkRe.FindAllSubmatch(body, -1) {
		e := Entry{Title: strings.TrimSpace(string(m[1])), URL: strings.TrimSpace(string(m[2]))}
		if _, dup := seen[e.URL]; dup {
			continue
		}
		seen[e.URL] = struct{}{}
		out = append(out, e)
	}
	return out
}

// stripFrontmatter drops a block between leading --- delimiters. Without a
// closing delimiter the whole input is body.
func stripFrontmatter(data []byte) []byte {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return data
	}
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return data
	}
	return rest[idx+1+len(delim):]
}

func trimAll(in []Entry) []Entry {
	for i := range in {
		in[i].Title = strings.TrimSpace(in[i].Title)
		in[i].URL = strings.TrimSpace(in[i].URL)
	}
	return in
}
