package mcpserver

// ImportFormatContract describes the files accepted by import_bookmarks and
// the import inbox.
const ImportFormatContract = `# Smartmarks Import Formats

The file extension selects the parser. Every bookmark needs a non-empty
title and URL; entries missing either are skipped, the rest are imported.

## Netscape bookmark HTML (.html, .htm)

The export format of every major browser. Each ` + "`<A HREF=\"...\">Title</A>`" + `
becomes a bookmark; folders are flattened. A link without text uses its URL
as the title.

## JSON (.json)

` + "```" + `json
[
  {"title": "Go", "url": "https://go.dev"},
  {"title": "Docs", "url": "https://pkg.go.dev"}
]
` + "```" + `

## YAML (.yaml, .yml)

` + "```" + `yaml
- title: Go
  url: https://go.dev
` + "```" + `

## Markdown (.md)

Every inline link ` + "`[Title](https://example.com)`" + ` is a bookmark. YAML
frontmatter is ignored. A URL that appears twice is imported once.

## Notes

Importing the same file twice creates duplicates.
`
