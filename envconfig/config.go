// config.go - Haupt-Konfigurationsfunktionen fuer gmncount
//
// Dieses Modul enthaelt:
// - Models: Gibt das Checkpoint-Verzeichnis zurueck (GMN_MODELS)
// - Data: Gibt das Datensatz-Verzeichnis zurueck (GMN_DATA)
// - Device: Gibt das bevorzugte Geraet zurueck (GMN_DEVICE)
// - LogLevel: Gibt Log-Level zurueck (GMN_DEBUG)
//
// Weitere Konfigurationen sind ausgelagert:
// - config_features.go: Seed und Parallelitaet
// - config_utils.go: Utility-Funktionen und AsMap/Values
package envconfig

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Models gibt das Verzeichnis der trainierten Checkpoints zurueck
// Konfigurierbar via GMN_MODELS
// Default: ../trained_models/
func Models() string {
	if s := Var("GMN_MODELS"); s != "" {
		return s
	}
	return "../trained_models/"
}

// Data gibt das Wurzelverzeichnis der Datensaetze zurueck
// Konfigurierbar via GMN_DATA
// Default: ./data
func Data() string {
	if s := Var("GMN_DATA"); s != "" {
		return s
	}
	return "./data"
}

// Device gibt das bevorzugte Compute-Geraet zurueck
// Konfigurierbar via GMN_DEVICE (cpu, cuda)
// Default: cuda, faellt ohne Beschleuniger auf cpu zurueck
func Device() string {
	if s := strings.ToLower(Var("GMN_DEVICE")); s != "" {
		return s
	}
	return "cuda"
}

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via GMN_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("GMN_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
