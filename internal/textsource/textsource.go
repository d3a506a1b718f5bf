// Package textsource turns a résumé file into plain text.
package textsource

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spigell/resume-analyzer/internal/resume"
)

// Stdin is the path that makes Load read standard input.
const Stdin = "-"

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoText            = errors.New("no text found")
	ErrPDF               = errors.New("pdf processing failed")
)

var stdin io.Reader = os.Stdin

// Load reads plain text files and extracts the text layer of PDF files.
func Load(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("path is required")
	}

	if path == Stdin {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return normalize(string(data)), nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".text", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %q: %w", path, err)
		}
		return normalize(string(data)), nil
	case ".pdf":
		return loadPDF(path)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// FailureText renders a load error as text the segmenter reports as an error section.
func FailureText(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoText):
		return "无法从PDF中提取文本"
	case errors.Is(err, ErrPDF):
		return "PDF处理失败: " + err.Error()
	case errors.Is(err, ErrUnsupportedFormat):
		return "无法识别图片文件: " + err.Error()
	default:
		return resume.ExtractionFailedMarker + ": " + err.Error()
	}
}

func normalize(text string) string {
	text = strings.ToValidUTF8(text, "\ufffd")
	return strings.TrimPrefix(text, "\ufeff")
}
