package pdf

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ErrNoPDFFile is returned when a document folder holds no PDF.
var ErrNoPDFFile = errors.New("no PDF file")

// Readers are the accepted pdf_reader values.
var Readers = []string{"system", "skim", "preview", "zathura", "evince", "okular"}

// Opener launches a PDF viewer.
type Opener struct {
	reader string
	goos   string
}

// NewOpener creates an opener for the given reader ("" means "system").
func NewOpener(reader string) *Opener {
	if reader == "" {
		reader = "system"
	}
	return &Opener{reader: reader, goos: runtime.GOOS}
}

// Open starts the viewer on path without waiting for it.
func (o *Opener) Open(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("PDF file does not exist: %s", path)
		}
		return fmt.Errorf("checking PDF file: %w", err)
	}
	cmd, err := o.command(path)
	if err != nil {
		return err
	}
	return cmd.Start()
}

// command returns the viewer command for the opener's platform.
func (o *Opener) command(path string) (*exec.Cmd, error) {
	switch o.goos {
	case "darwin":
		switch o.reader {
		case "skim":
			return exec.Command("open", "-a", "Skim", path), nil
		case "preview":
			return exec.Command("open", "-a", "Preview", path), nil
		default:
			return exec.Command("open", path), nil
		}
	case "linux", "freebsd", "openbsd":
		switch o.reader {
		case "zathura", "evince", "okular":
			return exec.Command(o.reader, path), nil
		default:
			return exec.Command("xdg-open", path), nil
		}
	default:
		return nil, fmt.Errorf("unsupported platform: %s", o.goos)
	}
}

// FindPDF returns the first of files, relative to folder, that is a PDF.
func FindPDF(folder string, files []string) (string, error) {
	for _, name := range files {
		path := filepath.Join(folder, name)
		if ok, err := IsPDFFile(path); err == nil && ok {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNoPDFFile, folder)
}
