package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/skyfeed/pkg/buildinfo"
)

func TestVersionCommand(t *testing.T) {
	require.NotNil(t, versionCmd)
	assert.Equal(t, "version", versionCmd.Use)
	assert.Equal(t, "Print version information", versionCmd.Short)
	assert.NotNil(t, versionCmd.Flags().Lookup("server"), "--server flag not found on version command")
}

func TestRootFlags(t *testing.T) {
	for _, name := range []string{"config", "output", "debug"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "missing --%s", name)
	}
	assert.Equal(t, "o", rootCmd.PersistentFlags().Lookup("output").Shorthand)
}

func TestSubcommands(t *testing.T) {
	groups := map[string]string{}
	for _, c := range rootCmd.Commands() {
		groups[c.Name()] = c.GroupID
	}

	want := map[string]string{
		"serve":   "feeds",
		"blend":   "feeds",
		"lists":   "feeds",
		"post":    "bot",
		"facets":  "bot",
		"auth":    "bot",
		"config":  "setup",
		"migrate": "setup",
		"version": "setup",
	}
	for name, group := range want {
		got, ok := groups[name]
		if assert.True(t, ok, "command %q not registered", name) {
			assert.Equal(t, group, got, "group of %q", name)
		}
	}
}

func runVersion(t *testing.T, args ...string) string {
	t.Helper()
	t.Cleanup(func() {
		outputFormat = ""
		versionServer = ""
	})

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	rootCmd.SetArgs(append([]string{"version"}, args...))
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	return buf.String()
}

func TestVersionOutput_Text(t *testing.T) {
	out := runVersion(t)
	assert.Contains(t, out, "skyfeed version "+buildinfo.Version)
	assert.Contains(t, out, "commit:")
}

func TestVersionOutput_JSON(t *testing.T) {
	out := runVersion(t, "--output", "json")

	var info buildinfo.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "skyfeed", info.ServiceName)
	assert.Equal(t, buildinfo.Version, info.Version)
}

func TestVersionOutput_Server(t *testing.T) {
	srv := httptest.NewServer(buildinfo.Handler("skyfeed-feedgen"))
	defer srv.Close()

	out := runVersion(t, "--server", srv.URL, "-o", "json")

	var infos []buildinfo.Info
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "skyfeed", infos[0].ServiceName)
	assert.Equal(t, "skyfeed-feedgen", infos[1].ServiceName)
}

func TestVersionOutput_ServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	out := runVersion(t, "--server", srv.URL)
	assert.Contains(t, out, "SERVICE")
	assert.Contains(t, out, "unreachable")
	assert.Contains(t, out, "unexpected status 404 Not Found")
}

func TestFetchVersion(t *testing.T) {
	var gotPath, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		_ = json.NewEncoder(w).Encode(buildinfo.Info{ServiceName: "remote", Version: "v9.9.9"})
	}))
	defer srv.Close()

	info, err := fetchVersion(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, "/version", gotPath)
	assert.Equal(t, buildinfo.UserAgent(), gotUA)
	assert.Equal(t, "v9.9.9", info.Version)

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer bad.Close()
	_, err = fetchVersion(context.Background(), bad.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding version")
}

func TestInvalidOutputFormat(t *testing.T) {
	t.Cleanup(func() { outputFormat = "" })
	rootCmd.SetArgs([]string{"version", "--output", "xml"})
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid --output "xml"`)
}
