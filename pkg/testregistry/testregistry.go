// Package testregistry provides test registries the test-attachment gate
// queries. Ref keys have the form test::<module>::<name>.
package testregistry

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Ref builds a ref key.
func Ref(module, name string) string {
	return "test::" + module + "::" + name
}

// Static is a fixed ref -> location map.
type Static map[string]string

// DiscoverTests implements checklist.TestRegistry.
func (s Static) DiscoverTests() (map[string]string, error) {
	out := make(map[string]string, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}

// Keys returns the refs, sorted.
func (s Static) Keys() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// GoScanner discovers Go tests under Root. Each TestXxx function in a
// _test.go file becomes test::<dir>::<TestXxx>, where dir is the package
// directory relative to Root (the package name for Root itself).
type GoScanner struct {
	Root string
}

// DiscoverTests implements checklist.TestRegistry.
func (g GoScanner) DiscoverTests() (map[string]string, error) {
	if g.Root == "" {
		return nil, errors.New("testregistry: scanner root not set")
	}
	out := make(map[string]string)
	fset := token.NewFileSet()

	err := filepath.WalkDir(g.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != g.Root && (name == "vendor" || name == "testdata" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, "_test.go") {
			return nil
		}

		f, parseErr := parser.ParseFile(fset, path, nil, parser.SkipObjectResolution)
		if parseErr != nil {
			return fmt.Errorf("parse %s: %w", path, parseErr)
		}
		module, err := g.module(path, f)
		if err != nil {
			return err
		}
		for _, decl := range f.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv != nil || !isTestName(fn.Name.Name) {
				continue
			}
			pos := fset.Position(fn.Pos())
			rel, _ := filepath.Rel(g.Root, pos.Filename)
			out[Ref(module, fn.Name.Name)] = fmt.Sprintf("%s:%d", filepath.ToSlash(rel), pos.Line)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover tests: %w", err)
	}
	return out, nil
}

func (g GoScanner) module(path string, f *ast.File) (string, error) {
	rel, err := filepath.Rel(g.Root, filepath.Dir(path))
	if err != nil {
		return "", err
	}
	if rel == "." {
		return strings.TrimSuffix(f.Name.Name, "_test"), nil
	}
	return filepath.ToSlash(rel), nil
}

// isTestName mirrors the go test rule: Test followed by end of name or a
// non-lowercase rune.
func isTestName(name string) bool {
	if !strings.HasPrefix(name, "Test") {
		return false
	}
	rest := name[len("Test"):]
	if rest == "" {
		return true
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return !unicode.IsLower(r)
}

// Load returns a Static registry read from a file of "ref location" lines.
// Blank lines and lines starting with # are ignored.
func Load(path string) (Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read test registry: %w", err)
	}
	out := make(Static)
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) > 2 {
			return nil, fmt.Errorf("test registry %s:%d: expected \"ref [location]\"", path, i+1)
		}
		loc := ""
		if len(fields) == 2 {
			loc = fields[1]
		}
		out[fields[0]] = loc
	}
	return out, nil
}
