package disk

import (
	"bytes"
	"context"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// formFile builds a FileHeader the way a parsed multipart request would.
func formFile(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("picture", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	return form.File["picture"][0]
}

func TestNew_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")

	u, err := New(dir, "")
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, dir, u.Dir())
	assert.Equal(t, DefaultURLPrefix, u.urlPrefix)
}

func TestUploader_Save(t *testing.T) {
	tests := []struct {
		name       string
		urlPrefix  string
		filename   string
		wantPrefix string
		wantExt    string
	}{
		{name: "default prefix", filename: "me.PNG", wantPrefix: "/uploads/", wantExt: ".png"},
		{name: "custom prefix", urlPrefix: "static/pics/", filename: "me.jpg", wantPrefix: "/static/pics/", wantExt: ".jpg"},
		{name: "hostile name", filename: "../../evil.gif", wantPrefix: "/uploads/", wantExt: ".gif"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			dir := t.TempDir()
			u, err := New(dir, test.urlPrefix)
			require.NoError(t, err)
			content := []byte("not really an image")

			// Act
			ref, err := u.Save(context.Background(), formFile(t, test.filename, content))

			// Assert
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(ref, test.wantPrefix), "ref = %q", ref)
			assert.True(t, strings.HasSuffix(ref, test.wantExt), "ref = %q", ref)

			got, err := os.ReadFile(filepath.Join(dir, path.Base(ref)))
			require.NoError(t, err)
			assert.Equal(t, content, got)
		})
	}
}

func TestUploader_Save_UniqueNames(t *testing.T) {
	u, err := New(t.TempDir(), "")
	require.NoError(t, err)

	a, err := u.Save(context.Background(), formFile(t, "a.png", []byte("a")))
	require.NoError(t, err)
	b, err := u.Save(context.Background(), formFile(t, "a.png", []byte("b")))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestUploader_Save_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	u, err := New(dir, "")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = u.Save(ctx, formFile(t, "a.png", []byte("a")))

	assert.ErrorIs(t, err, context.Canceled)
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}
