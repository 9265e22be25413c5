// MODUL: options
// ZWECK: Functional Options fuer die Modell-Konstruktion
// INPUT: Optionale Parameter (Kanaele, Bottleneck, Ausgabegroesse, Device, Seed)
// OUTPUT: Options Struct fuer Konstruktoren
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: ml (Device)
// HINWEISE: Defaults entsprechen ConvVAEGMN(channels=3) und SiameseResNet(output_size=10)

package model

import (
	"fmt"

	"github.com/7blacky7/gmncount/ml"
)

// ============================================================================
// Options - Zentrale Konfigurationsstruktur
// ============================================================================

// Options enthaelt die Konstruktionsparameter eines Modells.
type Options struct {
	Channels   int       // Bildkanaele (1 fuer Einzelkanal-VAEs)
	Bottleneck int       // Laenge des Bottleneck-Vektors
	InputSize  int       // Raeumliche Eingabegroesse (quadratisch)
	OutputSize int       // Ausgabebreite des Siamese-Kopfes
	Device     ml.Device // Bevorzugtes Geraet
	Seed       uint64    // Seed fuer Rauschen und Initialisierung, 0 = zufaellig

	// BackboneWeights zeigt auf einen Checkpoint mit vortrainierten
	// Backbone-Gewichten. Leer bedeutet zufaellige Initialisierung.
	BackboneWeights string
}

// Option ist eine funktionale Option fuer Options.
type Option func(*Options)

// ============================================================================
// DefaultOptions - Standard-Konfiguration
// ============================================================================

// DefaultOptions gibt die Standard-Konfiguration zurueck.
// - Channels: 3 (RGB)
// - Bottleneck: 512
// - InputSize: 63 (Template-Groesse)
// - OutputSize: 10
// - Device: cpu
func DefaultOptions() Options {
	return Options{
		Channels:   3,
		Bottleneck: 512,
		InputSize:  63,
		OutputSize: 10,
		Device:     ml.DeviceCPU,
	}
}

// ============================================================================
// Functional Options - Builder-Funktionen
// ============================================================================

// WithChannels setzt die Anzahl der Bildkanaele.
func WithChannels(n int) Option {
	return func(o *Options) {
		o.Channels = n
	}
}

// WithBottleneck setzt die Bottleneck-Groesse.
func WithBottleneck(n int) Option {
	return func(o *Options) {
		o.Bottleneck = n
	}
}

// WithInputSize setzt die raeumliche Eingabegroesse.
func WithInputSize(n int) Option {
	return func(o *Options) {
		o.InputSize = n
	}
}

// WithOutputSize setzt die Ausgabebreite.
func WithOutputSize(n int) Option {
	return func(o *Options) {
		o.OutputSize = n
	}
}

// WithDevice setzt das bevorzugte Geraet.
func WithDevice(d ml.Device) Option {
	return func(o *Options) {
		o.Device = d
	}
}

// WithSeed setzt den Seed fuer Rauschquelle und Initialisierung.
func WithSeed(seed uint64) Option {
	return func(o *Options) {
		o.Seed = seed
	}
}

// WithBackboneWeights setzt den Pfad zu vortrainierten Backbone-Gewichten.
func WithBackboneWeights(path string) Option {
	return func(o *Options) {
		o.BackboneWeights = path
	}
}

// Apply wendet alle Options an.
func (o *Options) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(o)
	}
}

// ============================================================================
// Validation
// ============================================================================

// Validate prueft ob die Options gueltig sind.
func (o *Options) Validate() error {
	if o.Channels <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChannels, o.Channels)
	}
	if o.Bottleneck <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBottleneck, o.Bottleneck)
	}
	if o.InputSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidInputSize, o.InputSize)
	}
	if o.OutputSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidOutputSize, o.OutputSize)
	}
	if _, err := ml.ParseDevice(string(o.Device)); err != nil {
		return err
	}
	return nil
}
