package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const modulePrefix = "rendercue/internal/"

var allowed = map[string]map[string]bool{
	"cli": {
		"logger":     true,
		"model":      true,
		"render":     true,
		"runstore":   true,
		"scene":      true,
		"schedule":   true,
		"status":     true,
		"statusapi":  true,
		"supervisor": true,
		"worker":     true,
		"workspace":  true,
	},
	"workspace": {
		"manifest": true,
		"model":    true,
		"render":   true,
		"runstore": true,
		"scene":    true,
		"worker":   true,
	},
	"schedule": {
		"logger":     true,
		"supervisor": true,
	},
	"statusapi": {
		"logger":     true,
		"supervisor": true,
	},
	// the supervisor never renders; it only launches and watches a worker
	"supervisor": {
		"logger":     true,
		"manifest":   true,
		"model":      true,
		"outputpath": true,
		"runstore":   true,
		"status":     true,
	},
	"worker": {
		"logger":     true,
		"manifest":   true,
		"model":      true,
		"outputpath": true,
		"render":     true,
		"runstore":   true,
		"status":     true,
	},
	"manifest": {
		"model":    true,
		"runstore": true,
	},
	"scene": {
		"model":    true,
		"runstore": true,
	},
	"status": {
		"model":    true,
		"runstore": true,
	},
	"outputpath": {
		"model": true,
	},
	"model":    {},
	"render":   {},
	"runstore": {},
	"logger":   {},
}

func main() {
	violations, err := check("internal")
	if err != nil {
		fmt.Fprintf(os.Stderr, "boundary walk failed: %v\n", err)
		os.Exit(1)
	}
	if len(violations) == 0 {
		fmt.Println("architecture boundary check: OK")
		return
	}
	sort.Strings(violations)
	fmt.Fprintf(os.Stderr, "%d architecture boundary violation(s):\n", len(violations))
	for _, v := range violations {
		fmt.Fprintf(os.Stderr, "  %s\n", v)
	}
	os.Exit(1)
}

// check parses the imports of every non-test file under root and reports
// each internal import its package is not allowed to make.
func check(root string) ([]string, error) {
	var violations []string
	fset := token.NewFileSet()
	walk := func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return walkErr
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		pkg := owningPackage(root, path)
		deps, known := allowed[pkg]
		if !known {
			violations = append(violations, fmt.Sprintf("%s: package %q has no entry in the allow list", path, pkg))
			return nil
		}
		file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}
		for _, imp := range file.Imports {
			target, internal := internalPackage(strings.Trim(imp.Path.Value, `"`))
			if !internal || target == pkg || deps[target] {
				continue
			}
			violations = append(violations, fmt.Sprintf("%s: %s must not import %s", path, pkg, target))
		}
		return nil
	}
	if err := filepath.WalkDir(root, walk); err != nil {
		return nil, err
	}
	return violations, nil
}

// owningPackage maps internal/<pkg>/... to <pkg>.
func owningPackage(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return ""
	}
	first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	return first
}

func internalPackage(importPath string) (string, bool) {
	rest, ok := strings.CutPrefix(importPath, modulePrefix)
	if !ok || rest == "" {
		return "", false
	}
	first, _, _ := strings.Cut(rest, "/")
	return first, true
}
