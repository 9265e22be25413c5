// config_features.go - Reproduzierbarkeit und Parallelitaet
//
// Dieses Modul enthaelt:
// - Seed fuer Rauschen, Initialisierung und Beispielauswahl
// - Worker-Grenze fuer das parallele Dekodieren der Farbkanaele
package envconfig

import "runtime"

var (
	// Seed setzt den Zufalls-Seed, 0 = nicht deterministisch
	// Konfigurierbar via GMN_SEED
	Seed = Uint64("GMN_SEED", 0)

	// NumThreads begrenzt die Anzahl gleichzeitiger Dekodier-Worker
	// Konfigurierbar via GMN_NUM_THREADS
	NumThreads = Uint("GMN_NUM_THREADS", uint(runtime.NumCPU()))
)
