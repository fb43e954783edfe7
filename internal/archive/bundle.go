// Package archive packs a project - its chapters, plans, and caps
// configuration - into a portable tar bundle, XZ-compressed by default
// with gzip as the faster stdlib alternative. Import auto-detects the
// compression from the archive's magic bytes.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/Lectern/core/caps"
	"github.com/FocuswithJustin/Lectern/core/errors"
	"github.com/FocuswithJustin/Lectern/core/plan"
	"github.com/FocuswithJustin/Lectern/internal/logging"
	"github.com/FocuswithJustin/Lectern/internal/store"
)

// CompressionType specifies the compression algorithm for bundles.
type CompressionType string

const (
	// CompressionXZ uses XZ/LZMA2 compression (default, best ratio).
	CompressionXZ CompressionType = "xz"
	// CompressionGzip uses gzip compression (stdlib, faster).
	CompressionGzip CompressionType = "gzip"
)

// manifestVersion is the bundle format version.
const manifestVersion = "1.0.0"

// Manifest is the bundle's table of contents.
type Manifest struct {
	Version     string            `json:"version"`
	ProjectName string            `json:"project_name"`
	Caps        caps.Caps         `json:"caps"`
	Chapters    []ManifestChapter `json:"chapters"`
	CreatedAt   string            `json:"created_at"`
}

// ManifestChapter records one chapter entry in the bundle.
type ManifestChapter struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Position    int    `json:"position"`
	Fingerprint string `json:"fingerprint"`
}

// Export writes the project bundle to outPath.
func Export(s *store.Store, projectRef, outPath string, compression CompressionType) error {
	project, err := s.GetProject(projectRef)
	if err != nil {
		return err
	}
	chapters, err := s.ListChapters(project.ID)
	if err != nil {
		return err
	}

	manifest := Manifest{
		Version:     manifestVersion,
		ProjectName: project.Name,
		Caps:        project.Caps,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}

	out, err := os.Create(outPath)
	if err != nil {
		return errors.NewIO("create", outPath, err)
	}
	defer out.Close()

	var compressor io.WriteCloser
	switch compression {
	case CompressionGzip:
		compressor, err = gzip.NewWriterLevel(out, gzip.BestCompression)
	case CompressionXZ, "":
		compressor, err = xz.NewWriter(out)
	default:
		return errors.NewValidation("compression", "unknown type: "+string(compression))
	}
	if err != nil {
		return errors.Wrap(err, "create compressor")
	}

	tw := tar.NewWriter(compressor)
	entries := 0

	writeEntry := func(name string, data []byte) error {
		hdr := &tar.Header{
			Name:    name,
			Mode:    0644,
			Size:    int64(len(data)),
			ModTime: time.Now().UTC(),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return errors.NewIO("write tar header", name, err)
		}
		if _, err := tw.Write(data); err != nil {
			return errors.NewIO("write tar entry", name, err)
		}
		entries++
		return nil
	}

	for _, ch := range chapters {
		full, err := s.GetChapter(ch.ID)
		if err != nil {
			return err
		}
		manifest.Chapters = append(manifest.Chapters, ManifestChapter{
			ID:          ch.ID,
			Title:       ch.Title,
			Position:    ch.Position,
			Fingerprint: ch.Fingerprint,
		})
		if err := writeEntry("chapters/"+ch.ID+".txt", []byte(full.Buffer().String())); err != nil {
			return err
		}

		p, _, err := s.LoadPlan(ch.ID)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				continue
			}
			return err
		}
		planJSON, err := json.Marshal(p)
		if err != nil {
			return errors.Wrap(err, "marshal plan")
		}
		if err := writeEntry("plans/"+ch.ID+".json", planJSON); err != nil {
			return err
		}
	}

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal manifest")
	}
	if err := writeEntry("manifest.json", manifestJSON); err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return errors.NewIO("close tar", outPath, err)
	}
	if err := compressor.Close(); err != nil {
		return errors.NewIO("close compressor", outPath, err)
	}
	logging.Info("bundle_exported", "path", outPath, "entries", entries,
		"compression", string(compression))
	return nil
}

// DetectCompression detects the compression type of a bundle file.
func DetectCompression(archivePath string) (CompressionType, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return "", errors.NewIO("open", archivePath, err)
	}
	defer file.Close()

	// Read magic bytes
	magic := make([]byte, 6)
	n, err := file.Read(magic)
	if err != nil {
		return "", errors.NewIO("read magic bytes", archivePath, err)
	}
	if n < 2 {
		return "", errors.NewValidation("archive", "file too small to detect compression")
	}

	// Check for gzip magic (1f 8b)
	if magic[0] == 0x1f && magic[1] == 0x8b {
		return CompressionGzip, nil
	}

	// Check for XZ magic (fd 37 7a 58 5a 00)
	if n >= 6 && magic[0] == 0xfd && magic[1] == 0x37 && magic[2] == 0x7a &&
		magic[3] == 0x58 && magic[4] == 0x5a && magic[5] == 0x00 {
		return CompressionXZ, nil
	}

	return "", errors.NewParse("bundle", archivePath, "unknown compression magic bytes")
}

// Import reads a bundle and recreates the project in the store under name
// (the manifest's project name when empty). Chapter text re-normalizes on
// insert, so a tampered bundle cannot smuggle mismatched offsets: plans are
// re-validated against the imported text before they are saved.
func Import(s *store.Store, archivePath, name string) (*store.Project, error) {
	compression, err := DetectCompression(archivePath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return nil, errors.NewIO("open", archivePath, err)
	}
	defer file.Close()

	var decompressor io.Reader
	switch compression {
	case CompressionGzip:
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, errors.NewParse("bundle", archivePath, err.Error())
		}
		defer gz.Close()
		decompressor = gz
	case CompressionXZ:
		xzr, err := xz.NewReader(file)
		if err != nil {
			return nil, errors.NewParse("bundle", archivePath, err.Error())
		}
		decompressor = xzr
	}

	// Read everything first; the manifest may be the last entry.
	var manifest *Manifest
	chapterText := map[string]string{}
	planJSON := map[string][]byte{}

	tr := tar.NewReader(decompressor)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewParse("bundle", archivePath, err.Error())
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, errors.NewIO("read tar entry", hdr.Name, err)
		}
		switch {
		case hdr.Name == "manifest.json":
			manifest = &Manifest{}
			if err := json.Unmarshal(data, manifest); err != nil {
				return nil, errors.NewParse("JSON", hdr.Name, err.Error())
			}
		case strings.HasPrefix(hdr.Name, "chapters/"):
			id := strings.TrimSuffix(path.Base(hdr.Name), ".txt")
			chapterText[id] = string(data)
		case strings.HasPrefix(hdr.Name, "plans/"):
			id := strings.TrimSuffix(path.Base(hdr.Name), ".json")
			planJSON[id] = data
		}
	}
	if manifest == nil {
		return nil, errors.NewParse("bundle", archivePath, "missing manifest.json")
	}

	if name == "" {
		name = manifest.ProjectName
	}
	project, err := s.CreateProject(name, manifest.Caps)
	if err != nil {
		return nil, err
	}

	for _, mc := range manifest.Chapters {
		body, ok := chapterText[mc.ID]
		if !ok {
			return nil, errors.NewParse("bundle", archivePath,
				"manifest references missing chapter "+mc.ID)
		}
		ch, err := s.AddChapter(project.ID, mc.Title, body)
		if err != nil {
			return nil, err
		}

		raw, ok := planJSON[mc.ID]
		if !ok {
			continue // chapter shipped without a plan; the seed plan stands
		}
		var p plan.Plan
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, errors.NewParse("JSON", "plans/"+mc.ID+".json", err.Error())
		}
		buf := ch.Buffer()
		if err := plan.Check(p, buf.Len()); err != nil {
			return nil, errors.Wrapf(err, "bundle plan for chapter %s", mc.ID)
		}
		if err := s.SavePlan(ch.ID, p, buf.Fingerprint()); err != nil {
			return nil, err
		}
	}
	logging.Info("bundle_imported", "path", archivePath, "project", name,
		"chapters", len(manifest.Chapters))
	return project, nil
}
