package linkcheck

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// Link represents a reference extracted from HTML content.
type Link struct {
	URL        string // raw URL or path as written
	Tag        string // HTML tag (a, img, script, link)
	Attribute  string // attribute containing the link (href, src)
	IsInternal bool   // true if the link targets the site itself
}

// linkAttributes maps tags to the attribute carrying their reference.
var linkAttributes = map[string]string{
	"a":      "href",
	"link":   "href",
	"img":    "src",
	"script": "src",
}

// ExtractLinks extracts all links from an HTML file.
func ExtractLinks(htmlPath string) ([]Link, error) {
	file, err := os.Open(filepath.Clean(htmlPath))
	if err != nil {
		return nil, fmt.Errorf("open HTML file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ExtractLinksFromReader(file)
}

// ExtractLinksFromReader extracts all links from an HTML reader.
func ExtractLinksFromReader(r io.Reader) ([]Link, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	var links []Link
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if attrName, ok := linkAttributes[n.Data]; ok {
				for _, attr := range n.Attr {
					if attr.Key != attrName || attr.Val == "" {
						continue
					}
					links = append(links, Link{
						URL:        attr.Val,
						Tag:        n.Data,
						Attribute:  attrName,
						IsInternal: isInternal(attr.Val),
					})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(doc)

	return links, nil
}

// isInternal reports whether the reference points into the site itself
// (relative path or fragment) rather than an external resource.
func isInternal(raw string) bool {
	if strings.HasPrefix(raw, "#") {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}
