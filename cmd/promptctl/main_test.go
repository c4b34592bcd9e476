package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/status-im/promptctl/backend"
	"github.com/status-im/promptctl/backend/mock"
	"github.com/status-im/promptctl/models"
)

type result struct {
	code   int
	stdout string
	stderr string
}

// isolate points every default location at temp dirs and clears PROMPTCTL_*
func isolate(t *testing.T) string {
	t.Helper()
	data := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", data)
	for _, name := range []string{"PROMPTCTL_CONFIG", "PROMPTCTL_STORE", "PROMPTCTL_STORE_PATH", "PROMPTCTL_KEYDB_URL", "PROMPTCTL_PASSPHRASE", "PROMPTCTL_METRICS_FILE"} {
		t.Setenv(name, "")
	}
	return data
}

func envMap(vars map[string]string) func(string) string {
	return func(name string) string { return vars[name] }
}

func runCLI(t *testing.T, ov overrides, stdin string, args ...string) result {
	t.Helper()
	if ov.getenv == nil {
		ov.getenv = envMap(nil)
	}
	var stdout, stderr bytes.Buffer
	code := runWith(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr, ov)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestCredentials_Lifecycle(t *testing.T) {
	isolate(t)
	ov := overrides{}

	res := runCLI(t, ov, "", "credentials", "list", "--format", "json")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "[]\n", res.stdout)

	res = runCLI(t, ov, "", "credentials", "list")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "No credentials stored.\n", res.stdout)

	res = runCLI(t, ov, "", "credentials", "set", "openai", "--api-key", "sk-test123456789")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "Stored credentials for openai (sk-*********6789)\n", res.stdout)

	res = runCLI(t, ov, "", "credentials", "list", "--format", "json")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, `[{"provider":"openai","api_key":"sk-*********6789"}]`+"\n", res.stdout)

	res = runCLI(t, ov, "", "credentials", "list")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "PROVIDER")
	assert.Contains(t, res.stdout, "openai")
	assert.NotContains(t, res.stdout, "sk-test123456789")

	res = runCLI(t, ov, "", "credentials", "get", "openai")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "openai: sk-*********6789\n", res.stdout)

	res = runCLI(t, ov, "", "credentials", "get", "openai", "--show")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "sk-test123456789\n", res.stdout)

	res = runCLI(t, ov, "", "creds", "rm", "openai")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "Deleted credentials for openai\n", res.stdout)

	res = runCLI(t, ov, "", "credentials", "delete", "openai")
	assert.Equal(t, 1, res.code)
	assert.Equal(t, "Error: No credentials found for provider \"openai\"\n", res.stderr)
}

func TestCredentials_SetFromStdin(t *testing.T) {
	data := isolate(t)

	res := runCLI(t, overrides{}, "sk-from-stdin-0001\n", "credentials", "set", "anthropic", "--api-key", "-")
	require.Equal(t, 0, res.code, res.stderr)

	res = runCLI(t, overrides{}, "", "credentials", "get", "anthropic", "--show")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "sk-from-stdin-0001\n", res.stdout)

	entries, err := os.ReadDir(filepath.Join(data, "promptctl"))
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestCredentials_SealedStoreNeedsPassphrase(t *testing.T) {
	isolate(t)

	sealed := overrides{getenv: envMap(map[string]string{"PROMPTCTL_PASSPHRASE": "hunter2"})}
	res := runCLI(t, sealed, "", "credentials", "set", "openai", "--api-key", "sk-sealed-00001")
	require.Equal(t, 0, res.code, res.stderr)

	res = runCLI(t, sealed, "", "credentials", "get", "openai", "--show")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "sk-sealed-00001\n", res.stdout)

	// Without the passphrase the envelope does not parse as a credential map
	res = runCLI(t, overrides{}, "", "credentials", "list", "--format", "json")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "[]\n", res.stdout)
}

func TestInjectedEnvIgnoresProcessEnv(t *testing.T) {
	isolate(t)
	t.Setenv("PROMPTCTL_STORE", "keydb")
	t.Setenv("PROMPTCTL_KEYDB_URL", "redis://127.0.0.1:1/0")

	res := runCLI(t, overrides{}, "", "status")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Store: file (")
}

func TestCredentials_Errors(t *testing.T) {
	isolate(t)

	res := runCLI(t, overrides{}, "", "credentials", "set", "openai")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, `required flag(s) "api-key" not set`)

	res = runCLI(t, overrides{}, "", "credentials", "list", "--format", "xml")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, `Invalid format "xml"`)

	res = runCLI(t, overrides{}, "", "--store", "s3", "credentials", "list")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "Invalid --store")
}

func TestGenerate_Validation(t *testing.T) {
	isolate(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad kind", []string{"generate", "video", "a cat"}, `Error: Invalid type "video": must be "text" or "image"`},
		{"empty prompt", []string{"generate", "text", "  "}, "Error: Prompt must not be empty"},
		{"bad model", []string{"generate", "text", "hi", "--model", "gpt-4o"}, `Error: Invalid model format "gpt-4o": expected provider:model`},
		{"temperature", []string{"generate", "text", "hi", "--temperature", "2.5"}, `Error: Temperature must be between 0.0 and 2.0, got "2.5"`},
		{"top-p", []string{"generate", "text", "hi", "--top-p", "1.1"}, `Error: Top-p must be between 0.0 and 1.0, got "1.1"`},
		{"top-k", []string{"generate", "text", "hi", "--top-k", "0"}, `Error: Top-k must be a positive integer, got "0"`},
		{"negative top-k", []string{"generate", "text", "hi", "--top-k=-10"}, `Error: Top-k must be a positive integer, got "-10"`},
		{"max tokens", []string{"generate", "text", "hi", "--max-tokens", "abc"}, `Error: Max tokens must be a positive integer, got "abc"`},
		{"output and stdout", []string{"generate", "image", "hi", "--output", "x.png", "--stdout"}, "Error: --output and --stdout cannot be used together"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := fakeBackend(t, "openai", models.KindText, models.KindImage)
			b.EXPECT().Generate(gomock.Any(), gomock.Any()).Times(0)

			res := runCLI(t, overrides{backends: []backend.Backend{b}}, "", tt.args...)
			assert.Equal(t, 1, res.code)
			assert.Equal(t, tt.want+"\n", res.stderr)
			assert.Empty(t, res.stdout)
		})
	}
}

func fakeBackend(t *testing.T, name string, kinds ...models.GenerationKind) *mock.MockBackend {
	ctrl := gomock.NewController(t)
	b := mock.NewMockBackend(ctrl)
	b.EXPECT().Name().Return(name).AnyTimes()
	b.EXPECT().Supports(gomock.Any()).DoAndReturn(func(k models.GenerationKind) bool {
		for _, kind := range kinds {
			if kind == k {
				return true
			}
		}
		return false
	}).AnyTimes()
	return b
}

func TestGenerate_Text(t *testing.T) {
	isolate(t)

	b := fakeBackend(t, "acme", models.KindText)
	b.EXPECT().Generate(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req *models.GenerationRequest) (models.Result, error) {
			assert.Equal(t, "Explain DNS", req.Prompt)
			require.NotNil(t, req.Temperature)
			assert.Equal(t, 0.2, *req.Temperature)
			assert.Equal(t, "acme-2", req.ModelFor("acme"))
			return models.TextResult{Text: "DNS maps names to addresses.", Provider: "acme"}, nil
		})

	res := runCLI(t, overrides{backends: []backend.Backend{b}}, "",
		"generate", "text", "Explain DNS", "--temperature", "0.2", "--model", "acme:acme-2")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "DNS maps names to addresses.\n", res.stdout)
}

func TestGenerate_TextToFile(t *testing.T) {
	isolate(t)
	dest := filepath.Join(t.TempDir(), "answer.txt")

	b := fakeBackend(t, "acme", models.KindText)
	b.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(models.TextResult{Text: "forty-two"}, nil)

	res := runCLI(t, overrides{backends: []backend.Backend{b}}, "", "generate", "text", "meaning of life", "-o", dest)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Empty(t, res.stdout)
	assert.Contains(t, res.stderr, "Wrote ")
	assert.Contains(t, res.stderr, "answer.txt")

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "forty-two", string(got))
}

func TestGenerate_ImageModes(t *testing.T) {
	isolate(t)
	png := []byte("\x89PNG\r\n\x1a\nfake")
	image := models.ImageResult{MIMEType: "image/png", Base64: base64.StdEncoding.EncodeToString(png)}

	b := fakeBackend(t, "painter", models.KindImage)
	b.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(image, nil).Times(2)
	ov := overrides{backends: []backend.Backend{b}}

	res := runCLI(t, ov, "", "generate", "image", "a fox")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, image.DataURI()+"\n", res.stdout)

	res = runCLI(t, ov, "", "generate", "image", "a fox", "--stdout")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, string(png), res.stdout)
}

func TestGenerate_ForbiddenDestinationSkipsBackend(t *testing.T) {
	isolate(t)

	// No Generate expectation: gomock fails the test if the backend is called
	b := fakeBackend(t, "painter", models.KindImage)

	res := runCLI(t, overrides{backends: []backend.Backend{b}}, "", "generate", "image", "a fox", "--output", "/etc/x.png")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "Refusing to write")
	assert.Contains(t, res.stderr, `protected directory "/etc"`)
}

func TestGenerate_NoBackend(t *testing.T) {
	isolate(t)

	res := runCLI(t, overrides{}, "", "generate", "text", "hello")
	assert.Equal(t, 1, res.code)
	assert.Equal(t, "Error: No backend available for text generation\n", res.stderr)
}

func TestGenerate_HTTPBackendFromConfig(t *testing.T) {
	isolate(t)
	png := []byte("\x89PNG\r\n\x1a\nfrom-server")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer env-key", r.Header.Get("Authorization"))
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "image", body["kind"])
		assert.Equal(t, "a lighthouse", body["prompt"])
		assert.Equal(t, "paint-1", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"image": map[string]string{"mime_type": "image/png", "data": base64.StdEncoding.EncodeToString(png)},
		})
	}))
	defer srv.Close()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
backends:
  - name: painter
    url: `+srv.URL+`
    kinds: [image]
    default_model: paint-1
    retry:
      max_retries: 1
`), 0o600))

	dest := filepath.Join(t.TempDir(), "lighthouse.png")
	ov := overrides{getenv: envMap(map[string]string{"PAINTER_API_KEY": "env-key"})}

	res := runCLI(t, ov, "", "--config", cfgPath, "generate", "image", "a lighthouse", "--output", dest)
	require.Equal(t, 0, res.code, res.stderr)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, png, got)

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestGenerate_HTTPBackendWithoutKey(t *testing.T) {
	isolate(t)

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
backends:
  - name: painter
    url: http://127.0.0.1:1/generate
    kinds: [image]
`), 0o600))

	res := runCLI(t, overrides{}, "", "--config", cfgPath, "generate", "image", "a lighthouse")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, `No API key for provider "painter"`)
	assert.Contains(t, res.stderr, "PAINTER_API_KEY")
}

func TestCheck(t *testing.T) {
	isolate(t)

	res := runCLI(t, overrides{}, "", "check", "hello")
	assert.Equal(t, 1, res.code)
	assert.Equal(t, "Error: No backend available for text generation\n", res.stderr)

	ov := overrides{backends: []backend.Backend{
		fakeBackend(t, "writer", models.KindText),
		fakeBackend(t, "painter", models.KindImage),
	}}

	res = runCLI(t, ov, "", "check", "a fox", "--type", "image")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "OK: image request would be served by painter\n", res.stdout)

	res = runCLI(t, ov, "", "check", "hello", "--model", "writer:w-1")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "OK: text request would be served by writer (model w-1)\n", res.stdout)

	res = runCLI(t, ov, "", "check", "hello", "--provider", "painter")
	assert.Equal(t, 1, res.code)
	assert.Equal(t, "Error: Provider \"painter\" does not support text generation\n", res.stderr)

	res = runCLI(t, ov, "", "check", "hello", "--top-k", "-3")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "Top-k must be a positive integer")
}

func TestStatus(t *testing.T) {
	isolate(t)

	res := runCLI(t, overrides{}, "", "credentials", "set", "writer", "--api-key", "sk-writer-000001")
	require.Equal(t, 0, res.code, res.stderr)

	ov := overrides{
		getenv: envMap(map[string]string{"PAINTER_API_KEY": "env-key"}),
		backends: []backend.Backend{
			fakeBackend(t, "writer", models.KindText),
			fakeBackend(t, "painter", models.KindImage, models.KindText),
		},
	}
	res = runCLI(t, ov, "", "status")
	require.Equal(t, 0, res.code, res.stderr)

	assert.Contains(t, res.stdout, "Store: file (")
	assert.Contains(t, res.stdout, "Backends (2):")
	assert.Regexp(t, `writer\s+text\s+vault`, res.stdout)
	assert.Regexp(t, `painter\s+text,image\s+env`, res.stdout)
	assert.Contains(t, res.stdout, "Stored credentials (1):\n  writer\n")
	assert.NotContains(t, res.stdout, "sk-writer-000001")
}

func TestMetricsFileWritten(t *testing.T) {
	isolate(t)
	metricsPath := filepath.Join(t.TempDir(), "promptctl.prom")
	ov := overrides{getenv: envMap(map[string]string{"PROMPTCTL_METRICS_FILE": metricsPath})}

	res := runCLI(t, ov, "", "generate", "text", "hi", "--temperature", "9")
	assert.Equal(t, 1, res.code)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `promptctl_request_validation_failures_total{kind="invalid argument"} 1`)
}
