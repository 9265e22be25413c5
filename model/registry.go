// Package model - Modell-Registry fuer Konstruktion per Klassenname.
//
// MODUL: registry
// ZWECK: Zentrale Registry fuer Modell-Konstruktoren mit Thread-sicherer Verwaltung
// INPUT: Klassenname oder Alias, Constructor-Funktionen, Options
// OUTPUT: Konstruierte Modell-Instanzen
// NEBENEFFEKTE: Keine (rein speicherbasiert)
// ABHAENGIGKEITEN: sync (stdlib), levenshtein (Namensvorschlaege)
// HINWEISE: Modelle registrieren sich via init() in ihren Packages
package model

import (
	"fmt"
	"slices"
	"sync"

	"github.com/agnivade/levenshtein"
)

// Constructor baut ein Modell aus validierten Options.
type Constructor func(Options) (Model, error)

// Kind ordnet ein registriertes Modell einer Aufgabe zu. Aufrufer koennen
// damit Namen filtern, ohne ein Modell zu bauen.
type Kind string

const (
	KindAutoencoder Kind = "autoencoder"
	KindComparator  Kind = "comparator"
)

type entry struct {
	kind        Kind
	constructor Constructor
}

// ============================================================================
// RegistryError
// ============================================================================

// RegistryError repraesentiert einen Registry-spezifischen Fehler.
type RegistryError struct {
	Op         string // Operation (z.B. "new", "register")
	Name       string // Modell-Name
	Suggestion string // Naechster registrierter Name, falls vorhanden
	Err        error  // Urspruenglicher Fehler
}

// Error implementiert das error Interface.
func (e *RegistryError) Error() string {
	msg := "model: " + e.Op + " '" + e.Name + "': " + e.Err.Error()
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

// Unwrap gibt den urspruenglichen Fehler zurueck.
func (e *RegistryError) Unwrap() error {
	return e.Err
}

// ============================================================================
// Registry
// ============================================================================

// Registry verwaltet Konstruktoren und Aliase. Thread-sicher durch RWMutex.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]entry
	aliases      map[string]string
}

// NewRegistry erstellt eine neue leere Registry.
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]entry),
		aliases:      make(map[string]string),
	}
}

// Register registriert einen Konstruktor unter dem Klassennamen.
// Doppelte Registrierung ist ein Programmierfehler und fuehrt zu panic.
func (r *Registry) Register(name string, kind Kind, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[name]; exists {
		panic("model: model already registered: " + name)
	}
	r.constructors[name] = entry{kind: kind, constructor: c}
}

// Alias macht einen registrierten Klassennamen unter einem zweiten Namen
// verfuegbar, z.B. "ConvVAE" fuer "ConvVAEGMN".
func (r *Registry) Alias(alias, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.aliases[alias] = name
}

// Canonical loest Aliase auf und liefert den Klassennamen.
func (r *Registry) Canonical(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if target, ok := r.aliases[name]; ok {
		name = target
	}
	if _, ok := r.constructors[name]; !ok {
		return "", &RegistryError{Op: "lookup", Name: name, Suggestion: r.suggest(name), Err: ErrNotRegistered}
	}
	return name, nil
}

// Names gibt alle Klassennamen und Aliase sortiert zurueck.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.constructors)+len(r.aliases))
	for name := range r.constructors {
		names = append(names, name)
	}
	for alias := range r.aliases {
		names = append(names, alias)
	}
	slices.Sort(names)
	return names
}

// Kind liefert die Aufgabe des Modells hinter name (Klassenname oder Alias).
func (r *Registry) Kind(name string) (Kind, error) {
	canonical, err := r.Canonical(name)
	if err != nil {
		return "", err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.constructors[canonical].kind, nil
}

// NamesOf gibt die Klassennamen und Aliase einer Aufgabe sortiert zurueck.
func (r *Registry) NamesOf(kind Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name, e := range r.constructors {
		if e.kind == kind {
			names = append(names, name)
		}
	}
	for alias, target := range r.aliases {
		if r.constructors[target].kind == kind {
			names = append(names, alias)
		}
	}
	slices.Sort(names)
	return names
}

// New erstellt ein Modell. Options werden auf DefaultOptions angewendet und
// vor dem Konstruktor-Aufruf validiert.
func (r *Registry) New(name string, opts ...Option) (Model, error) {
	canonical, err := r.Canonical(name)
	if err != nil {
		return nil, err
	}

	o := DefaultOptions()
	o.Apply(opts...)
	if err := o.Validate(); err != nil {
		return nil, &RegistryError{Op: "new", Name: canonical, Err: err}
	}

	r.mu.RLock()
	e := r.constructors[canonical]
	r.mu.RUnlock()

	return e.constructor(o)
}

// suggest liefert den naechsten Namen nach Levenshtein-Distanz.
// Aufrufer muss mu halten.
func (r *Registry) suggest(name string) string {
	best, bestDist := "", len(name)/2+1
	consider := func(candidate string) {
		if d := levenshtein.ComputeDistance(name, candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	for candidate := range r.constructors {
		consider(candidate)
	}
	for candidate := range r.aliases {
		consider(candidate)
	}
	return best
}

// ============================================================================
// Globale Registry-Instanz
// ============================================================================

// DefaultRegistry ist die globale Registry. Architekturen registrieren sich
// via init() in ihren Packages.
var DefaultRegistry = NewRegistry()

// Register registriert einen Konstruktor in der DefaultRegistry.
func Register(name string, kind Kind, c Constructor) {
	DefaultRegistry.Register(name, kind, c)
}

// Alias registriert einen Alias in der DefaultRegistry.
func Alias(alias, name string) {
	DefaultRegistry.Alias(alias, name)
}

// New erstellt ein Modell aus der DefaultRegistry.
func New(name string, opts ...Option) (Model, error) {
	return DefaultRegistry.New(name, opts...)
}

// Canonical loest einen Namen in der DefaultRegistry auf.
func Canonical(name string) (string, error) {
	return DefaultRegistry.Canonical(name)
}

// Names listet die DefaultRegistry.
func Names() []string {
	return DefaultRegistry.Names()
}

// NamesOf listet die Modelle einer Aufgabe in der DefaultRegistry.
func NamesOf(kind Kind) []string {
	return DefaultRegistry.NamesOf(kind)
}

// KindOf liefert die Aufgabe eines Modells in der DefaultRegistry.
func KindOf(name string) (Kind, error) {
	return DefaultRegistry.Kind(name)
}
