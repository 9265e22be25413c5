package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/7blacky7/gmncount/logutil"
	"github.com/7blacky7/gmncount/ml"
	"github.com/7blacky7/gmncount/vision"
)

// Folder name in the dataset registry.
const FolderName = "folder"

// Folder is an image directory laid out as
//
//	<root>/<split>/images/<stem>.<ext>
//	<root>/<split>/templates/<stem>_<n>.<ext>
//	<root>/<split>/counts.json   (optional, {"<stem>": count})
//
// Images are decoded on Get and nearest-resized like torchvision's
// Resize(..., NEAREST).
type Folder struct {
	dir       string
	opts      Options
	images    []string
	templates map[string][]string
	counts    map[string]int
}

func init() {
	Register(FolderName, func(root string, opts Options) (Dataset, error) {
		return OpenFolder(root, opts)
	})
}

// OpenFolder scans the split directory. Only file names are read here.
func OpenFolder(root string, opts Options) (*Folder, error) {
	dir := filepath.Join(root, opts.Split())
	images, err := listImages(filepath.Join(dir, "images"))
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("dataset: no images in %s", filepath.Join(dir, "images"))
	}

	f := &Folder{dir: dir, opts: opts, images: images, templates: make(map[string][]string)}

	templates, err := listImages(filepath.Join(dir, "templates"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	for _, name := range templates {
		base := strings.TrimSuffix(name, filepath.Ext(name))
		i := strings.LastIndex(base, "_")
		if i <= 0 {
			slog.Warn("skipping template without image stem", "file", name)
			continue
		}
		stem := base[:i]
		f.templates[stem] = append(f.templates[stem], name)
	}

	if f.counts, err = readCounts(filepath.Join(dir, "counts.json")); err != nil {
		return nil, err
	}

	slog.Debug("opened dataset", "dir", dir, "images", len(images), "templates", len(templates), "counts", len(f.counts))
	return f, nil
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && vision.IsImagePath(e.Name()) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

func readCounts(path string) (map[string]int, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}

	var counts map[string]int
	if err := json.Unmarshal(b, &counts); err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", path, err)
	}
	return counts, nil
}

func (f *Folder) Len() int {
	return len(f.images)
}

// Get decodes image i and its templates.
func (f *Folder) Get(i int) (Example, error) {
	if err := checkIndex(f, i); err != nil {
		return Example{}, err
	}

	name := f.images[i]
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	ex := Example{Name: stem, Count: UnknownCount}
	if c, ok := f.counts[stem]; ok {
		ex.Count = c
	}

	var g errgroup.Group
	g.Go(func() (err error) {
		ex.Image, err = load(filepath.Join(f.dir, "images", name), f.opts.ImageShape)
		return err
	})

	ex.Templates = make([]*ml.Tensor, len(f.templates[stem]))
	for j, t := range f.templates[stem] {
		g.Go(func() (err error) {
			ex.Templates[j], err = load(filepath.Join(f.dir, "templates", t), f.opts.TemplateSize)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return Example{}, fmt.Errorf("dataset: %w", err)
	}
	logutil.Trace("loaded example", "index", i, "name", stem, "templates", len(ex.Templates))
	return ex, nil
}

// load decodes path as a 3×H×W tensor, nearest-resized to size×size when size > 0.
func load(path string, size int) (*ml.Tensor, error) {
	img, err := vision.LoadImage(path)
	if err != nil {
		return nil, err
	}
	if size > 0 {
		if img, err = vision.Resize(img, size, size, vision.Nearest); err != nil {
			return nil, err
		}
	}
	return vision.ToTensor(img)
}
