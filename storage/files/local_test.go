package files

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwalimu/darasa/core"
)

func uploadHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("files", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))
	return req.MultipartForm.File["files"][0]
}

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()

	conf := core.NewTestConfig()
	conf.Uploads.Dir = t.TempDir()
	conf.Uploads.MaxFileSize = 1 << 10

	store, err := NewLocalStore(conf)
	require.NoError(t, err)
	return store
}

func TestLocalStoreValidate(t *testing.T) {
	store := newTestStore(t)

	tests := []struct {
		name    string
		file    string
		content []byte
		wantErr error
	}{
		{"pdf allowed", "report.pdf", []byte("ok"), nil},
		{"case-insensitive extension", "photo.JPG", []byte("ok"), nil},
		{"executable rejected", "virus.exe", []byte("nope"), ErrFileTypeNotAllowed},
		{"no extension rejected", "README", []byte("nope"), ErrFileTypeNotAllowed},
		{"too large", "big.pdf", bytes.Repeat([]byte("a"), 2<<10), ErrFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Validate(uploadHeader(t, tt.file, tt.content))
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLocalStoreSaveOpenRemove(t *testing.T) {
	store := newTestStore(t)

	content := []byte("%PDF-1.4 hello")
	saved, err := store.Save(uploadHeader(t, "essay.pdf", content))
	require.NoError(t, err)
	assert.Equal(t, "essay.pdf", saved.FileName)
	assert.NotContains(t, saved.StoragePath, "essay") // stored under a random name
	assert.Equal(t, int64(len(content)), saved.Size)

	f, err := store.Open(saved.StoragePath)
	require.NoError(t, err)
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, content, got)

	require.NoError(t, store.Remove(saved.StoragePath))
	_, err = store.Open(saved.StoragePath)
	assert.Error(t, err)

	// removing twice is fine
	assert.NoError(t, store.Remove(saved.StoragePath))
}
