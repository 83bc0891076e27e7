package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testService = "fieldops/contexts/sales/orders"

// writeSource drops a file importing imports at contexts/sales/orders/<rel>.
func writeSource(t *testing.T, root string, rel string, imports ...string) {
	t.Helper()
	full := filepath.Join(root, "sales", "orders", filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))

	var body strings.Builder
	body.WriteString("package " + filepath.Base(filepath.Dir(full)) + "\n\nimport (\n")
	for _, imp := range imports {
		body.WriteString("\t_ \"" + imp + "\"\n")
	}
	body.WriteString(")\n")
	require.NoError(t, os.WriteFile(full, []byte(body.String()), 0o644))
}

func newContextsRoot(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "contexts")
	require.NoError(t, os.MkdirAll(root, 0o755))
	return root
}

func reasons(findings []finding) map[string]string {
	out := make(map[string]string, len(findings))
	for _, item := range findings {
		out[item.File+" "+item.Import] = item.Reason
	}
	return out
}

func TestCheckTreeAcceptsLayeredService(t *testing.T) {
	root := newContextsRoot(t)
	writeSource(t, root, "domain/entities/order.go", "time", testService+"/domain/errors")
	writeSource(t, root, "ports/ports.go", "context", testService+"/domain/entities", "fieldops/contracts/gen/events/v1")
	writeSource(t, root, "application/commands/place.go",
		testService+"/application", testService+"/ports", "go.opentelemetry.io/otel/trace")
	writeSource(t, root, "adapters/simulated/source.go", "math/rand/v2", testService+"/domain/entities")
	writeSource(t, root, "adapters/prometheus/metrics.go",
		testService+"/domain/entities", "github.com/prometheus/client_golang/prometheus/promauto")
	writeSource(t, root, "adapters/postgres/repo.go", "gorm.io/gorm/clause", "github.com/jackc/pgx/v5/pgconn")
	writeSource(t, root, "module.go", testService+"/adapters/memory", testService+"/adapters/http")

	findings, err := checkTree(root)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestCheckTreeReportsLayerViolations(t *testing.T) {
	root := newContextsRoot(t)
	writeSource(t, root, "domain/entities/order.go", testService+"/ports", "github.com/google/uuid")
	writeSource(t, root, "application/commands/place.go",
		"go.opentelemetry.io/otel/sdk/trace", testService+"/adapters/memory")
	writeSource(t, root, "adapters/simulated/source.go", "gorm.io/gorm")
	writeSource(t, root, "adapters/prometheus/metrics.go", testService+"/adapters/memory")
	writeSource(t, root, "adapters/http/handler.go", "fieldops/internal/platform/config", "fieldops/contexts/sales/billing/ports")

	findings, err := checkTree(root)
	require.NoError(t, err)

	got := reasons(findings)
	assert.Equal(t, map[string]string{
		"sales/orders/domain/entities/order.go " + testService + "/ports":                 "domain must not import ports",
		"sales/orders/domain/entities/order.go github.com/google/uuid":                    "domain may not import this package",
		"sales/orders/application/commands/place.go go.opentelemetry.io/otel/sdk/trace":   "application may use the otel API only",
		"sales/orders/application/commands/place.go " + testService + "/adapters/memory":  "application may not import this package",
		"sales/orders/adapters/simulated/source.go gorm.io/gorm":                          "adapters/simulated may not import this package",
		"sales/orders/adapters/prometheus/metrics.go " + testService + "/adapters/memory": "adapters must not import other adapters",
		"sales/orders/adapters/http/handler.go fieldops/internal/platform/config":         "contexts must not import platform packages",
		"sales/orders/adapters/http/handler.go fieldops/contexts/sales/billing/ports":     "cross-service imports are forbidden",
	}, got)

	// Sorted by file, then line.
	assert.Equal(t, "sales/orders/adapters/http/handler.go", findings[0].File)
	assert.Less(t, findings[0].Line, findings[1].Line)
}

func TestCheckTreeFlagsUnknownLayer(t *testing.T) {
	root := newContextsRoot(t)
	writeSource(t, root, "adapters/kafka/consumer.go", "context")

	findings, err := checkTree(root)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "unknown layer adapters/kafka", findings[0].Reason)
	assert.Empty(t, findings[0].Import)
}

func TestCheckTreeSkipsTestFiles(t *testing.T) {
	root := newContextsRoot(t)
	writeSource(t, root, "application/commands/place_test.go", testService+"/adapters/memory")

	findings, err := checkTree(root)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestRepositoryContextsPassBoundaryCheck(t *testing.T) {
	findings, err := checkTree(filepath.Join("..", "contexts"))
	require.NoError(t, err)
	for _, item := range findings {
		t.Error(item.String())
	}
}
