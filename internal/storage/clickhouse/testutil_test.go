package clickhouse

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	clickhouseImage = "clickhouse/clickhouse-server:24.1-alpine"
	// Tests run from the package directory; the migrations package imports
	// this one.
	migrationsDir = "../migrations/clickhouse"
)

// setupTestDB starts a throwaway ClickHouse with the schema applied.
func setupTestDB(t *testing.T) (*Conn, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        clickhouseImage,
			ExposedPorts: []string{"9000/tcp"},
			Env:          map[string]string{"CLICKHOUSE_DB": "midgard"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("9000/tcp"),
				wait.ForLog("Ready for connections").WithStartupTimeout(time.Minute),
			),
		},
		Started: true,
	})
	require.NoError(t, err, "start clickhouse container")

	endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "")
	require.NoError(t, err)

	conn, err := NewConn(ctx, fmt.Sprintf("clickhouse://%s/midgard?dial_timeout=30s", endpoint))
	require.NoError(t, err)
	applySchema(t, ctx, conn, os.DirFS(migrationsDir))

	return conn, func() {
		conn.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate clickhouse container: %v", err)
		}
	}
}

// applySchema executes the statements of every *.sql file of fsys in name
// order, one Exec per statement.
func applySchema(t *testing.T, ctx context.Context, conn *Conn, fsys fs.FS) {
	t.Helper()

	names, err := fs.Glob(fsys, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names, "no migrations in %s", migrationsDir)

	for _, name := range names {
		body, err := fs.ReadFile(fsys, name)
		require.NoError(t, err)
		for _, stmt := range statements(string(body)) {
			require.NoError(t, conn.Exec(ctx, stmt), "apply %s", name)
		}
	}
}

// statements drops "--" comment lines and splits on semicolons.
func statements(sql string) []string {
	var b strings.Builder
	sc := bufio.NewScanner(strings.NewReader(sql))
	for sc.Scan() {
		if !strings.HasPrefix(strings.TrimSpace(sc.Text()), "--") {
			b.WriteString(sc.Text())
			b.WriteByte('\n')
		}
	}

	var out []string
	for _, s := range strings.Split(b.String(), ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func i64(v int64) *int64 {
	return &v
}
