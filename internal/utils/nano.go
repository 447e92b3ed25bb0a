package utils

import gonanoid "github.com/matoous/go-nanoid/v2"

const (
	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// ReportIDSize matches the width of the reports.id column.
	ReportIDSize = 32
)

// NanoID returns a random alphanumeric report identifier.
func NanoID() string {
	return gonanoid.MustGenerate(idAlphabet, ReportIDSize)
}
