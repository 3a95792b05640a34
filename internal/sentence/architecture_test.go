package sentence

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestTransformPackagesStayStorageFree ensures the pure transform layer
// (vocab, expression, sentence) never grows a dependency on storage or
// infrastructure. Encoding and decoding must remain usable without a blob
// store, a database, or the dataset builder.
func TestTransformPackagesStayStorageFree(t *testing.T) {
	transformPrefixes := []string{
		"cellseq/internal/vocab",
		"cellseq/internal/expression",
		"cellseq/internal/sentence",
	}
	forbiddenPrefixes := []string{
		"cellseq/internal/blob",
		"cellseq/internal/manifest",
		"cellseq/internal/dataset",
		"database/sql",
		"github.com/aws/",
		"github.com/jackc/",
		"modernc.org/sqlite",
	}

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports}
	pkgs, err := packages.Load(cfg, transformPrefixes...)
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	seen := make(map[string]struct{})
	for _, pkg := range pkgs {
		for importPath := range pkg.Imports {
			for _, prefix := range forbiddenPrefixes {
				if importPath == prefix || strings.HasPrefix(importPath, prefix) {
					seen[pkg.PkgPath+": "+importPath] = struct{}{}
				}
			}
		}
	}

	if len(seen) > 0 {
		violations := make([]string, 0, len(seen))
		for v := range seen {
			violations = append(violations, v)
		}
		sort.Strings(violations)
		for _, v := range violations {
			t.Errorf("forbidden import in transform package: %s", v)
		}
		t.Fatalf("found %d forbidden imports in transform packages", len(violations))
	}
}
