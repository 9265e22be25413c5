// Package dataset stellt Zaehl-Datensaetze als lazy, indexierbare Folgen bereit.
//
// Ein Beispiel besteht aus dem Bild, den Vorlagen (Templates) des zu
// zaehlenden Objekts und der Anzahl. Datensaetze registrieren sich per Name
// (entspricht dataset_dict) und werden mit Open geoeffnet.
package dataset

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/agnivade/levenshtein"

	"github.com/7blacky7/gmncount/ml"
)

var (
	ErrUnknownDataset = errors.New("dataset: unknown dataset")
	ErrIndex          = errors.New("dataset: index out of range")
	ErrNoTemplates    = errors.New("dataset: example has no templates")
)

// UnknownCount markiert Beispiele ohne Zaehl-Annotation.
const UnknownCount = -1

// Example ist ein einzelnes Beispiel. Image und Templates sind C×H×W Tensoren
// mit Werten in [0,1].
type Example struct {
	Name      string
	Image     *ml.Tensor
	Templates []*ml.Tensor
	Count     int
}

// Template liefert die erste Vorlage des Beispiels.
func (e Example) Template() (*ml.Tensor, error) {
	if len(e.Templates) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTemplates, e.Name)
	}
	return e.Templates[0], nil
}

// Dataset ist eine lazy, indexierbare Folge von Beispielen.
type Dataset interface {
	Len() int
	Get(i int) (Example, error)
}

func checkIndex(d Dataset, i int) error {
	if i < 0 || i >= d.Len() {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndex, i, d.Len())
	}
	return nil
}

// Options steuert Split und Zielgroessen.
type Options struct {
	// ImageShape ist die quadratische Kantenlaenge der Bilder, 0 laesst sie unveraendert.
	ImageShape int
	// TemplateSize ist die Kantenlaenge der Vorlagen, 0 laesst sie unveraendert.
	TemplateSize int
	Train        bool
	// Length und Seed gelten nur fuer generierte Datensaetze.
	Length int
	Seed   uint64
}

// DefaultOptions liefert den Test-Split mit 96er Bildern und 63er Vorlagen.
func DefaultOptions() Options {
	return Options{ImageShape: 96, TemplateSize: 63}
}

// Split liefert den Verzeichnisnamen des gewaehlten Splits.
func (o Options) Split() string {
	if o.Train {
		return "train"
	}
	return "test"
}

// Opener oeffnet einen Datensatz unterhalb von root.
type Opener func(root string, opts Options) (Dataset, error)

var (
	mu      sync.RWMutex
	openers = make(map[string]Opener)
)

// Register macht einen Datensatz unter name verfuegbar. Doppelte Namen sind ein
// Programmierfehler.
func Register(name string, open Opener) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := openers[name]; exists {
		panic("dataset: duplicate registration of " + name)
	}
	openers[name] = open
}

// Names liefert alle registrierten Datensaetze sortiert.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(openers))
	for name := range openers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Open oeffnet den Datensatz name.
func Open(name, root string, opts Options) (Dataset, error) {
	mu.RLock()
	open, ok := openers[name]
	mu.RUnlock()

	if !ok {
		err := fmt.Errorf("%w %q", ErrUnknownDataset, name)
		if s := suggest(name); s != "" {
			err = fmt.Errorf("%w (did you mean %q?)", err, s)
		}
		return nil, err
	}
	if opts.ImageShape < 0 || opts.TemplateSize < 0 {
		return nil, fmt.Errorf("dataset: invalid sizes %d/%d", opts.ImageShape, opts.TemplateSize)
	}
	return open(root, opts)
}

func suggest(name string) string {
	best, bestDist := "", len(name)/2+1
	for _, candidate := range Names() {
		if d := levenshtein.ComputeDistance(name, candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}
