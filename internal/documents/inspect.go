package documents

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gen2brain/go-fitz"
)

// AcceptedExtensions lists the file types the backend ingests
var AcceptedExtensions = []string{".pdf", ".doc", ".docx", ".txt"}

// ErrUnsupportedType is returned for files outside AcceptedExtensions
var ErrUnsupportedType = errors.New("unsupported file type")

// FileInfo describes a local file that passed inspection
type FileInfo struct {
	Path  string
	Name  string
	Type  string
	Size  int64
	Pages int // PDFs only
}

// Inspect checks a file before it is uploaded: the extension must be
// accepted, the file non-empty, PDFs must open and have at least one page,
// DOCX must be a zip archive and TXT must be UTF-8.
func Inspect(path string) (*FileInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if stat.Size() == 0 {
		return nil, fmt.Errorf("%s is empty", filepath.Base(path))
	}

	fileType := strings.ToLower(filepath.Ext(path))
	if !accepted(fileType) {
		return nil, fmt.Errorf("%w: %q (accepted: %s)", ErrUnsupportedType, fileType, strings.Join(AcceptedExtensions, ", "))
	}

	info := &FileInfo{
		Path: path,
		Name: filepath.Base(path),
		Type: strings.TrimPrefix(fileType, "."),
		Size: stat.Size(),
	}

	switch fileType {
	case ".pdf":
		pages, err := countPDFPages(path)
		if err != nil {
			return nil, err
		}
		info.Pages = pages
	case ".docx":
		if err := checkZip(path, stat.Size()); err != nil {
			return nil, err
		}
	case ".txt":
		if err := checkUTF8(path); err != nil {
			return nil, err
		}
	}

	return info, nil
}

func accepted(ext string) bool {
	for _, a := range AcceptedExtensions {
		if a == ext {
			return true
		}
	}
	return false
}

// countPDFPages opens the PDF with MuPDF
func countPDFPages(path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages < 1 {
		return 0, fmt.Errorf("PDF %s has no pages", filepath.Base(path))
	}
	return pages, nil
}

func checkZip(path string, size int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := zip.NewReader(f, size); err != nil {
		return fmt.Errorf("failed to read DOCX archive: %w", err)
	}
	return nil
}

func checkUTF8(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return fmt.Errorf("%s is not valid UTF-8 text", filepath.Base(path))
	}
	return nil
}
