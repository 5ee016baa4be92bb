package capability

// DefaultTesseractLanguage is used when no language is configured.
const DefaultTesseractLanguage = "eng"

// TesseractConfig configures the Tesseract recognizer. Language accepts
// several codes joined with "+".
type TesseractConfig struct {
	Language string
	DataPath string
	// Clients caps the idle Tesseract clients kept for reuse. Zero means
	// GOMAXPROCS.
	Clients int
}
