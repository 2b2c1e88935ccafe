// Package artifact models the files a pipeline run consumes and produces.
// Inputs arrive as BIOM tables and TSV metadata; the toolkit emits .qza
// data artifacts and .qzv visualizations into a run's artifacts directory.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/taxaflow/taxaflow/internal/errors"
)

// Kind classifies an artifact by its file format.
type Kind string

const (
	KindBiom    Kind = "biom" // Input feature table
	KindTSV     Kind = "tsv"  // Sample metadata or taxonomy assignments
	KindData    Kind = "qza"  // Toolkit data artifact
	KindVisual  Kind = "qzv"  // Toolkit visualization
	KindUnknown Kind = "unknown"
)

// KindFromPath derives the artifact kind from a file path's extension.
func KindFromPath(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".biom":
		return KindBiom
	case ".tsv", ".txt":
		return KindTSV
	case ".qza":
		return KindData
	case ".qzv":
		return KindVisual
	default:
		return KindUnknown
	}
}

// IsViewable reports whether the artifact kind is a visualization that can
// be opened in a viewer.
func (k Kind) IsViewable() bool {
	return k == KindVisual
}

// Artifact describes a single file in a run's artifacts directory.
// Artifacts are immutable once written; the checksum lets a later reader
// confirm nothing touched the file since it was recorded.
type Artifact struct {
	Name      string    `json:"name"`       // File name within the artifacts directory
	Path      string    `json:"path"`       // Absolute path
	Kind      Kind      `json:"kind"`       // File format classification
	Size      int64     `json:"size"`       // Size in bytes
	SHA256    string    `json:"sha256"`     // Hex content digest when recorded
	CreatedAt time.Time `json:"created_at"` // Modification time when recorded
}

// FromFile stats and hashes path and builds an Artifact record for it.
func FromFile(path string) (*Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewArtifactError("artifact file missing", errors.ErrArtifactNotFound).
				WithKind(string(KindFromPath(path))).
				WithPath(path)
		}
		return nil, errors.Wrapf(err, "failed to stat artifact %s", path)
	}
	if info.IsDir() {
		return nil, errors.NewArtifactError("artifact path is a directory", nil).WithPath(path)
	}

	sum, err := checksum(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to hash artifact %s", path)
	}

	return &Artifact{
		Name:      filepath.Base(path),
		Path:      path,
		Kind:      KindFromPath(path),
		Size:      info.Size(),
		SHA256:    sum,
		CreatedAt: info.ModTime(),
	}, nil
}

func checksum(path string) (string, error) {
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

// List returns records for every regular file in dir, sorted by the
// directory listing order. A missing directory yields an empty slice.
func List(dir string) ([]*Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read artifacts directory %s", dir)
	}

	var artifacts []*Artifact
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		a, err := FromFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue // Skip files that vanished between ReadDir and Stat
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}
