// Command check_boundaries fails when a package under contexts/ imports
// something its layer is not allowed to see. Test files are not checked.
//
//	go run ./scripts/check_boundaries.go [root]
package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

const modulePath = "fieldops"

// layerRule lists what one layer of a service may import besides the standard
// library. Own entries are relative to the service; Deny wins over Allow.
type layerRule struct {
	Layer string
	Own   []string
	Allow []string
	Deny  []denied
}

type denied struct {
	Prefix string
	Reason string
}

var otelAPIOnly = []denied{
	{"go.opentelemetry.io/otel/sdk", "application may use the otel API only"},
	{"go.opentelemetry.io/otel/exporters", "application may use the otel API only"},
}

// Longest layer first, so adapters/simulated matches before adapters.
var layerRules = []layerRule{
	{Layer: "adapters/simulated", Own: []string{"domain", "ports"}},
	{Layer: "adapters/prometheus", Own: []string{"domain", "ports"}, Allow: []string{"github.com/prometheus/client_golang"}},
	{Layer: "adapters/memory", Own: []string{"domain", "ports"}, Allow: []string{"github.com/google/uuid"}},
	{Layer: "adapters/postgres", Own: []string{"domain", "ports"}, Allow: []string{"github.com/google/uuid", "github.com/jackc/pgx/v5", "gorm.io/gorm"}},
	{Layer: "adapters/http", Own: []string{"application", "domain", "ports", "transport"}},
	{Layer: "application", Own: []string{"application", "domain", "ports"}, Allow: []string{modulePath + "/contracts", "go.opentelemetry.io/otel"}, Deny: otelAPIOnly},
	{Layer: "transport"},
	{Layer: "ports", Own: []string{"domain"}, Allow: []string{modulePath + "/contracts"}},
	{Layer: "domain", Own: []string{"domain"}, Deny: []denied{{"ports", "domain must not import ports"}}},
}

type finding struct {
	File   string
	Line   int
	Import string
	Reason string
}

func (f finding) String() string {
	if f.Import == "" {
		return fmt.Sprintf("%s:%d %s", f.File, f.Line, f.Reason)
	}
	return fmt.Sprintf("%s:%d imports %q: %s", f.File, f.Line, f.Import, f.Reason)
}

func main() {
	root := "contexts"
	if len(os.Args) > 1 {
		root = os.Args[1]
	}
	findings, err := checkTree(root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if len(findings) == 0 {
		fmt.Println("boundary checks passed")
		return
	}
	fmt.Println("boundary violations found:")
	for _, item := range findings {
		fmt.Println("- " + item.String())
	}
	os.Exit(1)
}

// checkTree walks root, laid out as <context>/<service>/<layer>/..., and
// returns findings sorted by file and line.
func checkTree(root string) ([]finding, error) {
	var findings []finding
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".go") || strings.HasSuffix(p, "_test.go") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 3 {
			return nil
		}
		service := path.Join(modulePath, filepath.ToSlash(filepath.Base(root)), parts[0], parts[1])
		fileFindings, err := checkFile(p, filepath.ToSlash(rel), service, path.Join(parts[2:len(parts)-1]...))
		if err != nil {
			return err
		}
		findings = append(findings, fileFindings...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(findings, func(a, b finding) int {
		if c := strings.Compare(a.File, b.File); c != 0 {
			return c
		}
		return a.Line - b.Line
	})
	return findings, nil
}

// checkFile applies the rule of dir, the file's directory inside its service.
// Files at the service root only wire the service and may import any of it.
func checkFile(filename string, display string, service string, dir string) ([]finding, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, nil, parser.ImportsOnly)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", display, err)
	}

	rule, known := ruleFor(dir)
	var findings []finding
	if dir != "" && !known {
		findings = append(findings, finding{File: display, Line: 1, Reason: "unknown layer " + dir})
	}
	for _, imp := range file.Imports {
		imported := strings.Trim(imp.Path.Value, `"`)
		reason := checkImport(imported, service, dir, rule, known)
		if reason != "" {
			findings = append(findings, finding{
				File:   display,
				Line:   fset.Position(imp.Pos()).Line,
				Import: imported,
				Reason: reason,
			})
		}
	}
	return findings, nil
}

func ruleFor(dir string) (layerRule, bool) {
	for _, rule := range layerRules {
		if within(dir, rule.Layer) {
			return rule, true
		}
	}
	return layerRule{}, false
}

func checkImport(imported string, service string, dir string, rule layerRule, known bool) string {
	if isStdlib(imported) {
		return ""
	}
	contexts := path.Dir(path.Dir(service))
	switch {
	case within(imported, modulePath+"/internal"):
		return "contexts must not import platform packages"
	case within(imported, contexts) && !within(imported, service):
		return "cross-service imports are forbidden"
	case dir == "" || !known:
		return ""
	}

	for _, deny := range rule.Deny {
		target := deny.Prefix
		if !strings.Contains(target, ".") {
			target = path.Join(service, target)
		}
		if within(imported, target) {
			return deny.Reason
		}
	}
	if within(imported, path.Join(service, rule.Layer)) {
		return ""
	}
	if strings.HasPrefix(rule.Layer, "adapters/") && within(imported, path.Join(service, "adapters")) {
		return "adapters must not import other adapters"
	}
	for _, own := range rule.Own {
		if within(imported, path.Join(service, own)) {
			return ""
		}
	}
	for _, allow := range rule.Allow {
		if within(imported, allow) {
			return ""
		}
	}
	return rule.Layer + " may not import this package"
}

func within(p string, prefix string) bool {
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// isStdlib treats any path whose first element has no dot as standard
// library, except this module's own packages.
func isStdlib(importPath string) bool {
	if within(importPath, modulePath) {
		return false
	}
	first, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(first, ".")
}
