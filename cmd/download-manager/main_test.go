package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

type fixture struct {
	t        *testing.T
	database string
	dir      string
	driver   string
}

func newFixture(t *testing.T, driver string) *fixture {
	tmp := t.TempDir()
	return &fixture{
		t:        t,
		database: filepath.Join(tmp, "tasks.db"),
		dir:      filepath.Join(tmp, "downloads"),
		driver:   driver,
	}
}

func (f *fixture) run(args ...string) (string, error) {
	app := newApp(zap.NewAtomicLevel())
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &out
	app.ExitErrHandler = func(*cli.Context, error) {}
	argv := append([]string{"download-manager", "--database", f.database, "--driver", f.driver, "--dir", f.dir}, args...)
	err := app.Run(argv)
	return out.String(), err
}

func TestAddListMoveRemove(t *testing.T) {
	for _, driver := range []string{"bolt", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			assert := assert_.New(t)
			f := newFixture(t, driver)

			_, err := f.run("add", "example.com/a.bin", "example.com/b.bin")
			require.NoError(t, err)
			_, err = f.run("add", "--name", "custom", "--no-resume", "example.com/c")
			require.NoError(t, err)

			out, err := f.run("list")
			require.NoError(t, err)
			assert.Contains(out, "https://example.com/a.bin")
			assert.Contains(out, "custom")
			assert.Regexp(`(?m)^0 .*a\.bin`, out)

			_, err = f.run("move", "0", "2")
			require.NoError(t, err)
			out, err = f.run("list")
			require.NoError(t, err)
			assert.Regexp(`(?m)^0 .*b\.bin`, out)
			assert.Regexp(`(?m)^2 .*a\.bin`, out)

			_, err = f.run("remove", "nonexistent")
			assert.Error(err)
		})
	}
}

func TestAddNameWithManyURLs(t *testing.T) {
	f := newFixture(t, "bolt")
	_, err := f.run("add", "--name", "x", "example.com/a", "example.com/b")
	assert_.Error(t, err)
}

func TestGet(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello, world"))
	}))
	defer server.Close()
	f := newFixture(t, "bolt")

	_, err := f.run("get", server.URL+"/greeting.txt")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(f.dir, "greeting.txt"))
	require.NoError(t, err)
	assert.Equal("hello, world", string(data))

	out, err := f.run("list")
	require.NoError(t, err)
	assert.Contains(out, "finished")
	assert.Contains(out, "100.0%")
}

func TestGetFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()
	f := newFixture(t, "sqlite")

	_, err := f.run("get", server.URL+"/missing.txt")
	assert_.Error(t, err)
	out, err := f.run("list")
	require.NoError(t, err)
	assert_.Contains(t, out, "failed")
}
