// Package linkcheck verifies internal links in a rendered HTML tree. External
// URLs are never fetched; only filesystem existence of internal targets is
// checked.
package linkcheck

import (
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// BrokenLink describes an internal reference whose target does not exist.
type BrokenLink struct {
	SourceFile string // HTML file containing the link, relative to the tree root
	Target     string // raw link value
}

func (b BrokenLink) String() string {
	return fmt.Sprintf("%s -> %s", b.SourceFile, b.Target)
}

// VerifyTree walks every .html file under root and resolves internal links
// against the tree. Fragments-only links and external URLs are skipped.
func VerifyTree(root string) ([]BrokenLink, error) {
	var broken []BrokenLink

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".html") {
			return nil
		}

		links, err := ExtractLinks(path)
		if err != nil {
			return fmt.Errorf("extract links from %s: %w", path, err)
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}

		for _, link := range links {
			if !link.IsInternal {
				continue
			}
			target, ok := resolveTarget(root, path, link.URL)
			if !ok {
				continue
			}
			if _, err := os.Stat(target); err != nil {
				broken = append(broken, BrokenLink{SourceFile: rel, Target: link.URL})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return broken, nil
}

// resolveTarget maps a link value onto a filesystem path within the tree.
// Returns ok=false for links that need no checking (pure fragments, queries
// resolving to the page itself).
func resolveTarget(root, sourceFile, raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	p := u.Path
	if p == "" {
		// "#anchor" style self-reference.
		return "", false
	}

	var resolved string
	if strings.HasPrefix(p, "/") {
		resolved = filepath.Join(root, filepath.FromSlash(p))
	} else {
		resolved = filepath.Join(filepath.Dir(sourceFile), filepath.FromSlash(p))
	}

	// Directory links resolve to their index page.
	if strings.HasSuffix(p, "/") {
		resolved = filepath.Join(resolved, "index.html")
	}
	return resolved, true
}
