// Package model - Reflection-basierte State-Dict-Zuordnung
//
// Dieses Modul enthält die Reflection-Logik zum Finden der Parameter einer
// Modell-Struktur und zum strikten Laden bzw. Exportieren von State-Dicts.
//
// Hauptkomponenten:
// - Parameters: Sammelt alle Tensor-Felder rekursiv in Deklarations-Reihenfolge
// - Load: Alles-oder-nichts Übernahme eines State-Dicts
// - StateDict: Export der Parameter
// - Tag: Torch-Tag-Struktur für Tensor-Namen
// - parseTag: Parst Torch-Tags aus Struct-Tags

package model

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/7blacky7/gmncount/checkpoint"
	"github.com/7blacky7/gmncount/logutil"
	"github.com/7blacky7/gmncount/ml"
)

// Tag repräsentiert einen geparsten Torch-Tag, z.B.
// `torch:"num_batches_tracked,optional,i64"` oder `torch:"weight,alt:w"`.
type Tag struct {
	name         string
	alternatives []string
	// optional erlaubt das Fehlen im Checkpoint
	optional bool
	// integer markiert Zähler, die als I64 exportiert werden
	integer bool
}

// parseTag parst einen Torch-Tag-String in eine Tag-Struktur
func parseTag(s string) (tag Tag) {
	parts := strings.Split(s, ",")
	tag.name = parts[0]

	for _, part := range parts[1:] {
		switch {
		case part == "optional":
			tag.optional = true
		case part == "i64":
			tag.integer = true
		default:
			if value, ok := strings.CutPrefix(part, "alt:"); ok {
				if tag.name == "" {
					// Alternative zum Primärnamen erheben wenn kein Primärname
					tag.name = value
					slog.Warn("torch tag has alt: but no primary name", "tag", s)
				} else {
					tag.alternatives = append(tag.alternatives, value)
				}
			}
		}
	}

	return
}

func join(prefix, name string) string {
	switch {
	case prefix == "":
		return name
	case name == "":
		return prefix
	default:
		return prefix + "." + name
	}
}

// Parameter ist ein Tensor-Feld eines Modells.
type Parameter struct {
	Name         string
	Alternatives []string
	Optional     bool
	Integer      bool

	value reflect.Value
}

// Tensor liefert den aktuellen Wert des Feldes (kann nil sein).
func (p Parameter) Tensor() *ml.Tensor {
	t, _ := p.value.Interface().(*ml.Tensor)
	return t
}

var tensorType = reflect.TypeOf((*ml.Tensor)(nil))

// Parameters sammelt alle getaggten Tensor-Felder von m in
// Deklarations-Reihenfolge. Slices (nn.Sequential) tragen ihren Index als
// Namensbestandteil bei, Felder ohne torch-Tag werden übersprungen.
func Parameters(m Model) []Parameter {
	var params []Parameter
	collect(reflect.ValueOf(m), "", &params)
	return params
}

// collect durchläuft v rekursiv
func collect(v reflect.Value, prefix string, out *[]Parameter) {
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if !v.IsNil() {
			collect(v.Elem(), prefix, out)
		}
	case reflect.Slice, reflect.Array:
		for i := range v.Len() {
			collect(v.Index(i), join(prefix, strconv.Itoa(i)), out)
		}
	case reflect.Struct:
		t := v.Type()
		for i := range t.NumField() {
			f := t.Field(i)
			raw, ok := f.Tag.Lookup("torch")
			if !ok || raw == "-" || !f.IsExported() {
				continue
			}

			tag := parseTag(raw)
			fv := v.Field(i)
			if f.Type != tensorType {
				collect(fv, join(prefix, tag.name), out)
				continue
			}

			if !fv.CanSet() {
				continue
			}

			p := Parameter{
				Name:     join(prefix, tag.name),
				Optional: tag.optional,
				Integer:  tag.integer,
				value:    fv,
			}
			for _, alt := range tag.alternatives {
				p.Alternatives = append(p.Alternatives, join(prefix, alt))
			}
			*out = append(*out, p)
		}
	}
}

// ============================================================================
// LoadError
// ============================================================================

// ShapeMismatch beschreibt einen Tensor mit abweichender Form.
type ShapeMismatch struct {
	Name string
	Want []int
	Got  []int
}

// LoadError listet alle Abweichungen zwischen Modell und Checkpoint.
type LoadError struct {
	Missing    []string
	Unexpected []string
	Mismatched []ShapeMismatch
	// Suggestions ordnet fehlenden Schlüsseln den ähnlichsten unerwarteten zu
	Suggestions map[string]string
}

func (e *LoadError) empty() bool {
	return len(e.Missing) == 0 && len(e.Unexpected) == 0 && len(e.Mismatched) == 0
}

func (e *LoadError) suggest() {
	for _, missing := range e.Missing {
		best, bestDist := "", len(missing)/3+1
		for _, candidate := range e.Unexpected {
			if d := levenshtein.ComputeDistance(missing, candidate); d < bestDist {
				best, bestDist = candidate, d
			}
		}
		if best != "" {
			if e.Suggestions == nil {
				e.Suggestions = make(map[string]string)
			}
			e.Suggestions[missing] = best
		}
	}
}

func (e *LoadError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		names := make([]string, len(e.Missing))
		for i, name := range e.Missing {
			names[i] = name
			if s, ok := e.Suggestions[name]; ok {
				names[i] += fmt.Sprintf(" (did you mean %q?)", s)
			}
		}
		parts = append(parts, "missing keys: "+strings.Join(names, ", "))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected keys: "+strings.Join(e.Unexpected, ", "))
	}
	if len(e.Mismatched) > 0 {
		names := make([]string, len(e.Mismatched))
		for i, m := range e.Mismatched {
			names[i] = fmt.Sprintf("%s (model %v, checkpoint %v)", m.Name, m.Want, m.Got)
		}
		parts = append(parts, "shape mismatch: "+strings.Join(names, ", "))
	}
	return ErrCheckpointMismatch.Error() + ": " + strings.Join(parts, "; ")
}

func (e *LoadError) Unwrap() error {
	return ErrCheckpointMismatch
}

// ============================================================================
// Load / Export
// ============================================================================

func lookup(sd *checkpoint.StateDict, p Parameter) (string, *checkpoint.Tensor, bool) {
	for _, name := range append([]string{p.Name}, p.Alternatives...) {
		if t, ok := sd.Get(name); ok {
			return name, t, true
		}
	}
	return "", nil, false
}

// Load übernimmt sd strikt in m: jeder nicht-optionale Parameter muss mit
// gleicher Form vorhanden sein und jeder Checkpoint-Schlüssel muss einem
// Parameter oder einem Präfix aus Ignorer.IgnoredKeys entsprechen. Bei
// einer Abweichung bleibt m unverändert und der Fehler ist ein *LoadError.
// Lehnt Validator.Validate die neuen Gewichte ab, werden die alten
// zurückgesetzt.
func Load(m Model, sd *checkpoint.StateDict) error {
	type assignment struct {
		p Parameter
		t *ml.Tensor
	}

	var (
		lerr    LoadError
		pending []assignment
		used    = make(map[string]bool, sd.Len())
	)

	for _, p := range Parameters(m) {
		current := p.Tensor()
		name, ct, ok := lookup(sd, p)
		if !ok {
			if !p.Optional {
				lerr.Missing = append(lerr.Missing, p.Name)
			}
			continue
		}
		if current == nil {
			// Feld ohne Slot (z.B. Conv2D ohne Bias): Schlüssel bleibt unerwartet
			continue
		}
		used[name] = true

		if !slices.Equal(current.Shape(), ct.Shape) {
			lerr.Mismatched = append(lerr.Mismatched, ShapeMismatch{Name: name, Want: current.Shape(), Got: slices.Clone(ct.Shape)})
			continue
		}

		t, err := ml.New(slices.Clone(ct.Data), ct.Shape...)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		logutil.Trace("matched tensor", "name", name, "shape", ct.Shape)
		pending = append(pending, assignment{p: p, t: t})
	}

	var ignored []string
	if ig, ok := m.(Ignorer); ok {
		ignored = ig.IgnoredKeys()
	}

	_ = sd.Each(func(name string, _ *checkpoint.Tensor) error {
		if used[name] {
			return nil
		}
		for _, prefix := range ignored {
			if strings.HasPrefix(name, prefix) {
				logutil.Trace("ignored tensor", "name", name)
				return nil
			}
		}
		lerr.Unexpected = append(lerr.Unexpected, name)
		return nil
	})

	if !lerr.empty() {
		lerr.suggest()
		return &lerr
	}

	previous := make([]reflect.Value, len(pending))
	for i, a := range pending {
		previous[i] = reflect.ValueOf(a.p.value.Interface())
		a.p.value.Set(reflect.ValueOf(a.t))
	}

	if v, ok := m.(Validator); ok {
		if err := v.Validate(); err != nil {
			for i, a := range pending {
				a.p.value.Set(previous[i])
			}
			return err
		}
	}
	slog.Debug("loaded state dict", "model", m.Name(), "tensors", len(pending))
	return nil
}

// LoadFile liest einen Checkpoint und lädt ihn strikt in m.
func LoadFile(m Model, path string) error {
	sd, err := checkpoint.Read(path)
	if err != nil {
		return err
	}
	if err := Load(m, sd); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	slog.Info("loaded checkpoint", "model", m.Name(), "path", path)
	return nil
}

// StateDict exportiert alle gesetzten Parameter in Deklarations-Reihenfolge.
func StateDict(m Model) *checkpoint.StateDict {
	sd := checkpoint.NewStateDict()
	for _, p := range Parameters(m) {
		t := p.Tensor()
		if t == nil {
			continue
		}

		ct := checkpoint.NewTensor(t)
		if p.Integer {
			ct.DType = ml.DTypeI64
		}
		sd.Set(p.Name, ct)
	}
	return sd
}

// SaveFile schreibt die Parameter von m als safetensors-Datei.
func SaveFile(m Model, path string) error {
	return checkpoint.WriteSafetensors(path, StateDict(m), checkpoint.WithMetadata("model", m.Name()))
}
