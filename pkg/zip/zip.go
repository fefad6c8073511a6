package zip

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"partykit/internal/domain"
)

// ErrExport wraps every failure to build an archive.
var ErrExport = errors.New("zip: export failed")

type Asset struct {
	Filename string
	MIME     string
	Data     []byte
}

// ArchiveAssets writes assets into a deflate-compressed archive. Nothing is
// returned on failure.
func ArchiveAssets(assets []Asset) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, asset := range assets {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     asset.Filename,
			Method:   zip.Deflate,
			Modified: time.Now(),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: create %s: %v", ErrExport, asset.Filename, err)
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil, fmt.Errorf("%w: write %s: %v", ErrExport, asset.Filename, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: close: %v", ErrExport, err)
	}
	return buf.Bytes(), nil
}

// ExportOptions controls archive naming.
type ExportOptions struct {
	Folder    string
	Prefix    string
	AgePrefix string
	Age       string
	Now       time.Time
}

// Archive is a finished kit download.
type Archive struct {
	Filename string
	Data     []byte
}

var (
	dotRun    = regexp.MustCompile(`\.{2,}`)
	unsafeRun = regexp.MustCompile(`[^\p{L}\p{M}\p{N}.-]+`)
)

// SanitizeLabel turns free text into a single path segment: every run of
// characters outside letters, digits, '.' and '-' becomes one underscore and
// ".." never survives.
func SanitizeLabel(label string) string {
	s := dotRun.ReplaceAllString(label, "_")
	s = unsafeRun.ReplaceAllString(s, "_")
	return strings.Trim(s, "_.")
}

// SingleFilename is the download name of one generated image.
func SingleFilename(label string) string {
	return SanitizeLabel(label) + ".png"
}

// ArchiveFilename builds "<prefix>_[<agePrefix>_<age>_]<millis>.zip".
func ArchiveFilename(opts ExportOptions) string {
	prefix := firstNonEmpty(opts.Prefix, "Kit_Festa")
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString("_")
	if age := SanitizeLabel(opts.Age); age != "" {
		b.WriteString(firstNonEmpty(opts.AgePrefix, "Idade"))
		b.WriteString("_")
		b.WriteString(age)
		b.WriteString("_")
	}
	fmt.Fprintf(&b, "%d.zip", now.UnixMilli())
	return b.String()
}

// ExportKit bundles results into one archive under a single top-level
// folder. Empty results yield a nil archive and no error.
func ExportKit(results []domain.GeneratedImage, opts ExportOptions) (*Archive, error) {
	if len(results) == 0 {
		return nil, nil
	}
	folder := firstNonEmpty(SanitizeLabel(opts.Folder), "Kit_Festa_MeuMascoteParty")

	assets := make([]Asset, 0, len(results))
	for _, img := range results {
		data, err := Payload(img)
		if err != nil {
			return nil, err
		}
		assets = append(assets, Asset{
			Filename: path.Join(folder, SingleFilename(img.Label)),
			MIME:     "image/png",
			Data:     data,
		})
	}

	blob, err := ArchiveAssets(assets)
	if err != nil {
		return nil, err
	}
	return &Archive{Filename: ArchiveFilename(opts), Data: blob}, nil
}

// Payload returns the binary image of img, decoding its data URI when the
// raw bytes are not kept.
func Payload(img domain.GeneratedImage) ([]byte, error) {
	if len(img.Data) > 0 {
		return img.Data, nil
	}
	_, encoded, ok := strings.Cut(img.DataURI, ",")
	if !ok || encoded == "" {
		return nil, fmt.Errorf("%w: %s: malformed data uri", ErrExport, img.Type)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrExport, img.Type, err)
	}
	return data, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
