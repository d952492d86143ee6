package storage

import (
	"path"
	"strconv"
	"strings"

	"etd-catalog/etderr"
)

// PathMapper bildet Eintrags-IDs auf Verzeichnisse unterhalb von Root ab.
// Pfade sind logisch und slash-getrennt; die FileStore-Implementierung übersetzt sie.
type PathMapper struct {
	Root string
}

// NewPathMapper normalisiert root, leere Wurzeln werden zu ".".
func NewPathMapper(root string) PathMapper {
	root = strings.TrimSpace(strings.ReplaceAll(root, "\\", "/"))
	if root == "" {
		root = "."
	}
	return PathMapper{Root: path.Clean(root)}
}

// DirFor liefert das Verzeichnis eines Eintrags: Root/<id>.
func (m PathMapper) DirFor(entryID uint) string {
	return path.Join(m.Root, strconv.FormatUint(uint64(entryID), 10))
}

// DocumentPath liefert den Dateipfad eines Dokuments. filename muss bereits bereinigt sein,
// sonst wird InvalidPath geliefert.
func (m PathMapper) DocumentPath(entryID uint, filename string) (string, error) {
	clean, err := Sanitize(filename)
	if err != nil {
		return "", err
	}
	if clean != filename {
		return "", etderr.New(etderr.InvalidPath, "document filename %q is not sanitized", filename)
	}
	dir := m.DirFor(entryID)
	p := path.Join(dir, clean)
	if !strings.HasPrefix(p, dir+"/") {
		return "", etderr.New(etderr.InvalidPath, "document path %q escapes %q", p, dir)
	}
	return p, nil
}

// Sanitize bereinigt einen vom Client gelieferten Dateinamen.
// Abgelehnt werden leere Namen, Steuerzeichen und jedes ".."-Segment, auch wenn path.Clean
// es wegnormalisieren würde. Ergebnis ist der reine Dateiname ohne Verzeichnisanteile.
func Sanitize(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", etderr.New(etderr.InvalidPath, "document filename is empty")
	}
	if strings.ContainsAny(name, "\x00\r\n") {
		return "", etderr.New(etderr.InvalidPath, "document filename contains control characters")
	}

	name = strings.ReplaceAll(name, "\\", "/")
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return "", etderr.New(etderr.InvalidPath, "document filename %q contains parent directory segment", raw)
		}
	}

	base := path.Base(path.Clean(name))
	base = strings.TrimSpace(base)
	if base == "" || base == "." || base == "/" {
		return "", etderr.New(etderr.InvalidPath, "document filename %q has no file component", raw)
	}
	return base, nil
}
