package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLocal(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestLocalStorage_UploadDownload(t *testing.T) {
	s := setupLocal(t)
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		content := []byte("import pytest\n")
		err := s.Upload(ctx, "runs/abc/artifact_v1.py", bytes.NewReader(content))
		require.NoError(t, err)

		rc, err := s.Download(ctx, "runs/abc/artifact_v1.py")
		require.NoError(t, err)
		defer rc.Close()

		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})

	t.Run("download missing file", func(t *testing.T) {
		_, err := s.Download(ctx, "runs/missing/file.txt")
		assert.ErrorIs(t, err, ErrFileNotFound)
	})

	t.Run("overwrite replaces content", func(t *testing.T) {
		require.NoError(t, s.Upload(ctx, "runs/x/result.json", bytes.NewReader([]byte("first"))))
		require.NoError(t, s.Upload(ctx, "runs/x/result.json", bytes.NewReader([]byte("second"))))

		rc, err := s.Download(ctx, "runs/x/result.json")
		require.NoError(t, err)
		defer rc.Close()
		got, _ := io.ReadAll(rc)
		assert.Equal(t, "second", string(got))
	})
}

func TestLocalStorage_ExistsDelete(t *testing.T) {
	s := setupLocal(t)
	ctx := context.Background()

	require.NoError(t, s.Upload(ctx, "runs/abc/plan.json", bytes.NewReader([]byte("{}"))))

	exists, err := s.Exists(ctx, "runs/abc/plan.json")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.Delete(ctx, "runs/abc/plan.json"))

	exists, err = s.Exists(ctx, "runs/abc/plan.json")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, s.Delete(ctx, "runs/abc/plan.json"), ErrFileNotFound)
}

func TestLocalStorage_List(t *testing.T) {
	s := setupLocal(t)
	ctx := context.Background()

	require.NoError(t, s.Upload(ctx, "runs/abc/plan.json", bytes.NewReader([]byte("{}"))))
	require.NoError(t, s.Upload(ctx, "runs/abc/artifact_v1.py", bytes.NewReader([]byte("x"))))
	require.NoError(t, s.Upload(ctx, "runs/def/plan.json", bytes.NewReader([]byte("{}"))))

	paths, err := s.List(ctx, "runs/abc")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"runs/abc/plan.json", "runs/abc/artifact_v1.py"}, paths)

	empty, err := s.List(ctx, "runs/nope")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLocalStorage_GetURL(t *testing.T) {
	s := setupLocal(t)
	ctx := context.Background()

	require.NoError(t, s.Upload(ctx, "runs/abc/trace_1.zip", bytes.NewReader([]byte("zip"))))

	url, err := s.GetURL(ctx, "runs/abc/trace_1.zip")
	require.NoError(t, err)
	assert.Contains(t, url, "trace_1.zip")

	_, err = s.GetURL(ctx, "runs/abc/missing.zip")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestLocalStorage_PathTraversal(t *testing.T) {
	s := setupLocal(t)
	ctx := context.Background()

	cases := []string{
		"../outside.txt",
		"runs/../../outside.txt",
		"",
	}
	for _, p := range cases {
		err := s.Upload(ctx, p, bytes.NewReader([]byte("x")))
		assert.ErrorIs(t, err, ErrInvalidPath, p)
	}
}

func TestNewBlobStorage(t *testing.T) {
	t.Run("local storage", func(t *testing.T) {
		s, err := NewBlobStorage("local", map[string]interface{}{"base_dir": t.TempDir()})
		require.NoError(t, err)
		assert.IsType(t, &LocalStorage{}, s)
	})

	t.Run("local storage requires base_dir", func(t *testing.T) {
		_, err := NewBlobStorage("local", map[string]interface{}{})
		assert.Error(t, err)
	})

	t.Run("s3 requires bucket", func(t *testing.T) {
		_, err := NewBlobStorage("s3", map[string]interface{}{"region": "us-east-1"})
		assert.Error(t, err)
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		_, err := NewBlobStorage("ftp", map[string]interface{}{})
		assert.Error(t, err)
	})
}
