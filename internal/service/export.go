package service

import (
	"archive/zip"
	"bytes"
	"fmt"

	"github.com/jfjoao12/website-autobuilder/internal/domain"
	"github.com/jfjoao12/website-autobuilder/internal/seo"
)

// ExportService turns a finished build into a flat file list and a
// downloadable zip archive.
type ExportService struct {
	baseURL string
}

// NewExportService creates the packager. baseURL seeds the sitemap and
// robots fallbacks when the model's SEO pack is absent.
func NewExportService(baseURL string) *ExportService {
	return &ExportService{baseURL: baseURL}
}

// Files flattens the result: one <id>.html per page plus sitemap.xml
// and robots.txt. SEO assets fall back to locally generated ones so an
// export is always self-consistent.
func (e *ExportService) Files(result *domain.BuildResult) []domain.ExportFile {
	files := make([]domain.ExportFile, 0, len(result.Pages)+2)
	ids := make([]string, 0, len(result.Pages))
	for _, p := range result.Pages {
		files = append(files, domain.ExportFile{Path: p.ID + ".html", Contents: p.HTML})
		ids = append(ids, p.ID)
	}

	sitemap := ""
	robots := ""
	if result.SEO != nil {
		sitemap = result.SEO.Sitemap
		robots = result.SEO.Robots
	}
	if sitemap == "" {
		sitemap = seo.BuildSitemap(e.baseURL, ids)
	}
	if robots == "" {
		robots = seo.BuildRobots(e.baseURL)
	}
	files = append(files,
		domain.ExportFile{Path: "sitemap.xml", Contents: sitemap},
		domain.ExportFile{Path: "robots.txt", Contents: robots},
	)
	return files
}

// Archive zips the flat file list.
func (e *ExportService) Archive(result *domain.BuildResult) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range e.Files(result) {
		w, err := zw.Create(f.Path)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", f.Path, err)
		}
		if _, err := w.Write([]byte(f.Contents)); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.Path, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}
