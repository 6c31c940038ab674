package architecture_test

import (
	"bufio"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

type importRef struct {
	file string
	imp  string
}

func TestLayerBoundaries(t *testing.T) {
	root, modulePath := moduleRoot(t)

	var violations []string
	for _, ref := range collectImports(t, root) {
		layer := layerFor(ref.file)
		for _, bad := range disallowedImports(modulePath, layer) {
			if strings.HasPrefix(ref.imp, bad) {
				violations = append(violations, fmt.Sprintf("- %s (%s) imports %q", ref.file, layer, ref.imp))
				break
			}
		}
	}
	report(t, "layer boundary violations", violations)
}

// Vendor SDKs stay behind the adapter packages that own them.
func TestVendorSDKsStayInAdapters(t *testing.T) {
	root, _ := moduleRoot(t)

	owners := map[string][]string{
		"github.com/sashabaranov/go-openai": {"internal/platform/openai/"},
		"github.com/pkoukk/tiktoken-go":     {"internal/platform/openai/"},
		"github.com/redis/go-redis/":        {"internal/platform/redis/"},
		"github.com/qdrant/go-client/":      {"internal/platform/qdrant/"},
		"github.com/neo4j/neo4j-go-driver/": {"internal/platform/neo4jdb/", "internal/data/graph/", "internal/pkg/errors/"},
		"gorm.io/driver/":                   {"internal/data/db/", "internal/data/repos/testutil/"},
	}

	var violations []string
	for _, ref := range collectImports(t, root) {
		for sdk, allowed := range owners {
			if strings.HasPrefix(ref.imp, sdk) && !hasAnyPrefix(ref.file, allowed) {
				violations = append(violations, fmt.Sprintf("- %s imports %q (owned by %s)", ref.file, ref.imp, strings.Join(allowed, ", ")))
			}
		}
	}
	report(t, "vendor SDK imported outside its adapter", violations)
}

func layerFor(rel string) string {
	switch {
	case strings.HasPrefix(rel, "internal/platform/"), strings.HasPrefix(rel, "internal/pkg/"):
		return "platform"
	case strings.HasPrefix(rel, "internal/domain/"):
		return "domain"
	case strings.HasPrefix(rel, "internal/data/"):
		return "data"
	case strings.HasPrefix(rel, "internal/modules/"):
		return "modules"
	case strings.HasPrefix(rel, "internal/jobs/"):
		return "jobs"
	default:
		return ""
	}
}

func disallowedImports(modulePath string, layer string) []string {
	var (
		domain  = modulePath + "/internal/domain/"
		data    = modulePath + "/internal/data/"
		modules = modulePath + "/internal/modules/"
		jobs    = modulePath + "/internal/jobs/"
		app     = modulePath + "/internal/app"
	)
	switch layer {
	case "platform":
		return []string{domain, data, modules, jobs, app}
	case "domain":
		return []string{data, modules, jobs, app, modulePath + "/internal/platform/"}
	case "data":
		return []string{modules, jobs, app}
	case "modules":
		return []string{jobs, app}
	case "jobs":
		return []string{app}
	default:
		return nil
	}
}

func collectImports(t *testing.T, root string) []importRef {
	t.Helper()
	fset := token.NewFileSet()
	var refs []importRef
	err := filepath.WalkDir(filepath.Join(root, "internal"), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") || d.Name() == "vendor" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}
		for _, spec := range f.Imports {
			if spec == nil || spec.Path == nil {
				continue
			}
			if imp, err := strconv.Unquote(spec.Path.Value); err == nil {
				refs = append(refs, importRef{file: filepath.ToSlash(rel), imp: imp})
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk internal/: %v", err)
	}
	return refs
}

func moduleRoot(t *testing.T) (string, string) {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("go.mod not found")
		}
		dir = parent
	}
	mp, err := readModulePath(filepath.Join(dir, "go.mod"))
	if err != nil {
		t.Fatalf("read module path: %v", err)
	}
	return dir, mp
}

func readModulePath(goModPath string) (string, error) {
	f, err := os.Open(goModPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if mp, ok := strings.CutPrefix(line, "module "); ok {
			if mp = strings.TrimSpace(mp); mp != "" {
				return mp, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("module path not found in %s", goModPath)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func report(t *testing.T, title string, violations []string) {
	t.Helper()
	if len(violations) > 0 {
		t.Fatalf("%s:\n%s", title, strings.Join(violations, "\n"))
	}
}
