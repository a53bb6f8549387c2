package scripting

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ManifestFilename is the sha256sum-format file listing the trusted scripts.
const ManifestFilename = "scripts.sha256"

// Manifest maps script file names to their expected SHA256 digests.
type Manifest struct {
	sums map[string]string
}

// ParseManifest reads sha256sum output. Blank lines and # comments are
// skipped.
func ParseManifest(r io.Reader) (*Manifest, error) {
	m := &Manifest{sums: make(map[string]string)}
	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		sum, file, ok := strings.Cut(text, "  ")
		if !ok || len(sum) != sha256.Size*2 {
			return nil, fmt.Errorf("manifest line %d: want \"<sha256>  <file>\"", line)
		}
		if _, err := hex.DecodeString(sum); err != nil {
			return nil, fmt.Errorf("manifest line %d: %w", line, err)
		}
		m.sums[strings.TrimPrefix(strings.TrimSpace(file), "*")] = strings.ToLower(sum)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadManifest reads the manifest in dir. A missing manifest returns nil
// without error.
func LoadManifest(dir string) (*Manifest, error) {
	f, err := os.Open(filepath.Join(dir, ManifestFilename))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return ParseManifest(f)
}

// GenerateManifest hashes every .lua file in dir.
func GenerateManifest(dir string) (*Manifest, error) {
	files, err := scriptFiles(dir)
	if err != nil {
		return nil, err
	}
	m := &Manifest{sums: make(map[string]string, len(files))}
	for _, name := range files {
		sum, err := HashFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", name, err)
		}
		m.sums[name] = sum
	}
	return m, nil
}

// Len returns the number of listed scripts.
func (m *Manifest) Len() int { return len(m.sums) }

// Verify checks the file at path against the digest listed for name.
func (m *Manifest) Verify(name, path string) error {
	want, ok := m.sums[name]
	if !ok {
		return fmt.Errorf("%s is not listed in %s", name, ManifestFilename)
	}
	got, err := HashFile(path)
	if err != nil {
		return fmt.Errorf("hash %s: %w", name, err)
	}
	if got != want {
		return fmt.Errorf("%s: digest %s does not match manifest %s", name, got, want)
	}
	return nil
}

// WriteTo writes the manifest sorted by file name.
func (m *Manifest) WriteTo(w io.Writer) (int64, error) {
	names := make([]string, 0, len(m.sums))
	for name := range m.sums {
		names = append(names, name)
	}
	slices.Sort(names)

	var total int64
	for _, name := range names {
		n, err := fmt.Fprintf(w, "%s  %s\n", m.sums[name], name)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteFile writes the manifest into dir.
func (m *Manifest) WriteFile(dir string) error {
	f, err := os.Create(filepath.Join(dir, ManifestFilename))
	if err != nil {
		return err
	}
	if _, err := m.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// HashFile returns the hex SHA256 digest of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func scriptFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".lua") {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}
