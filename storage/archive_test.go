package storage

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryUploader struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemoryUploader() *memoryUploader {
	return &memoryUploader{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryUploader) Upload(_ context.Context, key, contentType string, r io.Reader) (*UploadResult, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.objects[key] = body
	m.types[key] = contentType
	return &UploadResult{Key: key}, nil
}

func (m *memoryUploader) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memoryUploader) GetPublicURL(key string) string { return "" }

func TestArchiverWritesJSON(t *testing.T) {
	up := newMemoryUploader()
	a := &uploaderArchiver{uploader: up, now: func() time.Time {
		return time.Date(2026, 5, 2, 10, 30, 0, 0, time.UTC)
	}}

	key, err := a.ArchiveBracketReport(context.Background(), 12, map[string]any{"issues": []string{}})
	require.NoError(t, err)
	assert.Equal(t, "reports/tournaments/12/20260502T103000Z.json", key)
	assert.Equal(t, "application/json", up.types[key])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(up.objects[key], &decoded))
	assert.Contains(t, decoded, "issues")

	key, err = a.ArchiveVetoLog(context.Background(), 3, struct{ Status string }{"completed"})
	require.NoError(t, err)
	assert.Equal(t, VetoLogKey(3), key)

	require.NoError(t, a.DropVetoLog(context.Background(), 3))
	assert.NotContains(t, up.objects, key)
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/veto/sessions/1.json", publicURL("https://cdn.example.com", "veto/sessions/1.json"))
	assert.Equal(t, "https://cdn.example.com/archive/veto/sessions/1.json", publicURL("https://cdn.example.com/archive/", "/veto/sessions/1.json"))
	assert.Empty(t, publicURL("", "x"))
}
