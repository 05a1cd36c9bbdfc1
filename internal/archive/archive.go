// Package archive opens DXT bundles and locates the manifest and server source inside them.
package archive

import (
	"archive/zip"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/hpungsan/dxtcheck/internal/config"
	"github.com/hpungsan/dxtcheck/internal/errors"
)

// maxEntryBytes bounds how much of a single entry is read into memory.
const maxEntryBytes = 32 << 20

// Manifest is the subset of a DXT manifest the validator reads.
type Manifest struct {
	Name    string         `json:"name,omitempty"`
	Version string         `json:"version,omitempty"`
	Server  ManifestServer `json:"server"`
	Tools   []ManifestTool `json:"tools"`
}

// ManifestServer describes how the bundled server is launched.
type ManifestServer struct {
	Type       string `json:"type,omitempty"`
	EntryPoint string `json:"entry_point,omitempty"`
}

// ManifestTool is one capability advertised by the manifest.
type ManifestTool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Source is the server source chosen from the archive.
type Source struct {
	Name string
	Text string
	// Others lists additional entries that matched the server filename.
	Others []string
}

// Inspector gives read-only access to a bundle's entries.
type Inspector struct {
	path  string
	rc    *zip.ReadCloser
	files map[string]*zip.File
}

// Open opens the archive at path. Callers must Close the returned Inspector.
func Open(path string) (*Inspector, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewMissingFile(path)
		}
		return nil, &errors.CheckError{
			Code:    errors.ErrMissingFile,
			Message: fmt.Sprintf("cannot open archive %s: %v", path, err),
			Details: map[string]any{"file": path},
			Err:     err,
		}
	}

	files := make(map[string]*zip.File, len(rc.File))
	for _, f := range rc.File {
		if _, dup := files[f.Name]; !dup {
			files[f.Name] = f
		}
	}
	return &Inspector{path: path, rc: rc, files: files}, nil
}

// Close releases the archive handle.
func (in *Inspector) Close() error {
	if in == nil || in.rc == nil {
		return nil
	}
	err := in.rc.Close()
	in.rc = nil
	return err
}

// Path returns the archive path the inspector was opened with.
func (in *Inspector) Path() string {
	return in.path
}

// Names returns every entry name in archive enumeration order.
func (in *Inspector) Names() []string {
	names := make([]string, 0, len(in.rc.File))
	for _, f := range in.rc.File {
		names = append(names, f.Name)
	}
	return names
}

// Has reports whether an entry with exactly this name exists.
func (in *Inspector) Has(name string) bool {
	_, ok := in.files[name]
	return ok
}

// Read returns the raw bytes of the named entry.
func (in *Inspector) Read(name string) ([]byte, error) {
	f, ok := in.files[name]
	if !ok {
		return nil, errors.NewMissingFile(name)
	}

	r, err := f.Open()
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("open %s: %w", name, err))
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, maxEntryBytes+1))
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("read %s: %w", name, err))
	}
	if len(data) > maxEntryBytes {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("entry %s exceeds %d bytes", name, maxEntryBytes))
	}
	return data, nil
}

// ReadManifest decodes the named manifest entry.
func (in *Inspector) ReadManifest(name string) (*Manifest, error) {
	data, err := in.Read(name)
	if err != nil {
		return nil, err
	}
	return ParseManifest(name, data)
}

// ParseManifest decodes manifest JSON. A tools field that is not a list of
// objects is treated as malformed.
func ParseManifest(name string, data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.NewMalformedManifest(name, err)
	}
	for i, t := range m.Tools {
		if strings.TrimSpace(t.Name) == "" {
			return nil, errors.NewMalformedManifest(name, fmt.Errorf("tools[%d] has no name", i))
		}
	}
	return &m, nil
}

// FindServerSource returns the first non-directory entry whose name ends with suffix.
// Under config.AmbiguousError, more than one match is an error; otherwise the
// extra matches are returned in Source.Others.
func (in *Inspector) FindServerSource(suffix, policy string) (*Source, error) {
	var matches []string
	for _, f := range in.rc.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.HasSuffix(f.Name, suffix) {
			matches = append(matches, f.Name)
		}
	}

	if len(matches) == 0 {
		return nil, errors.NewMissingFile(suffix)
	}
	if len(matches) > 1 && policy == config.AmbiguousError {
		return nil, errors.NewAmbiguousSource(suffix, matches)
	}

	data, err := in.Read(matches[0])
	if err != nil {
		return nil, err
	}
	return &Source{
		Name:   matches[0],
		Text:   strings.ToValidUTF8(string(data), "�"),
		Others: matches[1:],
	}, nil
}

// VerifyEntryPoint checks that the manifest's declared entry point is in the archive.
// A manifest that declares no entry point passes.
func (in *Inspector) VerifyEntryPoint(m *Manifest) error {
	entry := m.Server.EntryPoint
	if entry == "" {
		return nil
	}
	if !in.Has(entry) {
		return &errors.CheckError{
			Code:    errors.ErrMissingFile,
			Message: fmt.Sprintf("entry point file not found: %s", entry),
			Details: map[string]any{"file": entry},
		}
	}
	return nil
}
