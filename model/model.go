// Package model - Model-Interface, Registry und Checkpoint-Anbindung
//
// Dieses Paket definiert das Model-Interface und stellt Funktionen
// zur Erstellung und zum Laden von Netzwerken bereit.
//
// Hauptkomponenten:
// - Model: Interface für alle Netzwerk-Architekturen
// - Register/New: Registriert und erstellt Modelle per Klassenname
// - Load/LoadFile: Strikte Übernahme eines State-Dicts per Struct-Tags
// - StateDict: Export der Parameter in Deklarations-Reihenfolge

package model

import (
	"errors"
)

// Fehler-Definitionen
var (
	ErrNotRegistered      = errors.New("model not registered")
	ErrCheckpointMismatch = errors.New("checkpoint does not match model")
	ErrInvalidChannels    = errors.New("model: invalid channel count")
	ErrInvalidBottleneck  = errors.New("model: invalid bottleneck size")
	ErrInvalidOutputSize  = errors.New("model: invalid output size")
	ErrInvalidInputSize   = errors.New("model: invalid input size")
)

// Model ist das gemeinsame Interface aller Architekturen. Parameter werden
// über `torch:"..."` Struct-Tags gefunden, siehe Parameters.
type Model interface {
	// Name liefert den Klassennamen, unter dem Checkpoints abgelegt sind
	Name() string
}

// Validator ist ein optionales Interface für Post-Load-Validierung
type Validator interface {
	Validate() error
}

// Ignorer ist ein optionales Interface für Modelle, deren Checkpoints
// Tensoren enthalten, die der Vorwärts-Pass nie liest. Die Rückgabe sind
// Namens-Präfixe; passende Schlüssel gelten beim Laden als erwartet.
type Ignorer interface {
	IgnoredKeys() []string
}
