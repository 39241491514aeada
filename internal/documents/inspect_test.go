package documents

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestInspectText(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("\xef\xbb\xbfXin chào, tài liệu"))

	info, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", info.Name)
	assert.Equal(t, "txt", info.Type)
	assert.Equal(t, int64(len("\xef\xbb\xbfXin chào, tài liệu")), info.Size)
	assert.Zero(t, info.Pages)
}

func TestInspectDocx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte("<w:document/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	info, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, "docx", info.Type)
}

func TestInspectRejects(t *testing.T) {
	tests := []struct {
		name string
		file string
		data []byte
	}{
		{"unsupported extension", "image.png", []byte{0x89, 'P', 'N', 'G'}},
		{"empty file", "empty.txt", nil},
		{"invalid utf8", "bad.txt", []byte{0xff, 0xfe, 0xfd}},
		{"docx that is not a zip", "fake.docx", []byte("plain text")},
		{"corrupt pdf", "broken.pdf", []byte("this is not a pdf")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Inspect(writeFile(t, tt.file, tt.data))
			assert.Error(t, err)
		})
	}
}

func TestInspectUnsupportedIsTyped(t *testing.T) {
	_, err := Inspect(writeFile(t, "slides.pptx", []byte("x")))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestInspectMissingAndDirectory(t *testing.T) {
	_, err := Inspect(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)

	_, err = Inspect(t.TempDir())
	assert.Error(t, err)
}

func TestIndexOf(t *testing.T) {
	docs := []Document{{ID: "a", Filename: "a.pdf"}, {ID: "b", Filename: "b.pdf"}}
	assert.Equal(t, 1, IndexOf(docs, "b"))
	assert.Equal(t, -1, IndexOf(docs, "c"))
	assert.Equal(t, -1, IndexOf(nil, "a"))
}
