// Package include expands psql-style \i directives in view definition files,
// so shared fragments can be kept in one place.
package include

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Matches: \i filename or \i filename; (with optional semicolon)
var directive = regexp.MustCompile(`^\s*\\i\s+([^\s;]+)\s*;?\s*$`)

// Processor reads definition files below a root directory
type Processor struct {
	root    string
	base    string
	visited map[string]bool
}

// NewProcessor creates a processor that refuses includes outside root. An
// empty root confines includes to the directory of the file being read.
func NewProcessor(root string) *Processor {
	return &Processor{root: root}
}

// ReadFile returns the content of filename with every \i directive replaced
// by the content of the file it names. Include paths are relative to the
// including file.
func (p *Processor) ReadFile(filename string) (string, error) {
	absPath, err := filepath.Abs(filename)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for %s: %w", filename, err)
	}
	p.base = p.root
	if p.base == "" {
		p.base = filepath.Dir(absPath)
	}
	p.visited = make(map[string]bool)
	return p.read(absPath)
}

func (p *Processor) read(filename string) (string, error) {
	if p.visited[filename] {
		return "", fmt.Errorf("circular include detected: %s", filename)
	}
	p.visited[filename] = true
	// the same fragment may appear in sibling branches
	defer delete(p.visited, filename)

	content, err := os.ReadFile(filename)
	if err != nil {
		return "", err
	}

	lines := strings.Split(string(content), "\n")
	var result strings.Builder
	for i, line := range lines {
		matches := directive.FindStringSubmatch(line)
		if matches == nil {
			result.WriteString(line)
			if i < len(lines)-1 {
				result.WriteString("\n")
			}
			continue
		}

		resolved, err := p.resolve(matches[1], filepath.Dir(filename))
		if err != nil {
			return "", fmt.Errorf("%s:%d: %w", filename, i+1, err)
		}
		included, err := p.read(resolved)
		if err != nil {
			return "", fmt.Errorf("%s:%d: %w", filename, i+1, err)
		}
		result.WriteString(included)
		if !strings.HasSuffix(included, "\n") {
			result.WriteString("\n")
		}
	}
	return result.String(), nil
}

// resolve maps an include path to an absolute path inside the root
func (p *Processor) resolve(includePath, currentDir string) (string, error) {
	absPath, err := filepath.Abs(filepath.Join(currentDir, filepath.Clean(includePath)))
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	rootAbs, err := filepath.Abs(p.base)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute root path: %w", err)
	}

	rel, err := filepath.Rel(rootAbs, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("include path %s is outside %s", includePath, p.base)
	}
	return absPath, nil
}
