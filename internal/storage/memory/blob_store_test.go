package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "path/doc.xml", "application/xml", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "memory://path/doc.xml", uri)

	payload[0] = 'C'
	got, ok := store.Get("path/doc.xml")
	require.True(t, ok)
	assert.Equal(t, "content", string(got))
	assert.Equal(t, "application/xml", store.ContentType("path/doc.xml"))

	got[0] = 'X'
	again, _ := store.Get("path/doc.xml")
	assert.Equal(t, "content", string(again), "Get must return a copy")
}

func TestBlobStoreOpen(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	_, err := store.PutObject(context.Background(), "b.xml", "", strings.NewReader("<b/>"))
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), "a.xml", "", strings.NewReader("<a/>"))
	require.NoError(t, err)

	rc, err := store.Open(context.Background(), "a.xml")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "<a/>", string(data))

	_, err = store.Open(context.Background(), "missing.xml")
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	assert.Equal(t, []string{"a.xml", "b.xml"}, store.Keys())
}

func TestBlobStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().PutObject(context.Background(), "", "", strings.NewReader("x"))
	assert.Error(t, err)
}
