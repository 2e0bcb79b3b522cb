package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyFormat     = "format"
	KeyStage      = "stage"
	KeyAnchor     = "anchor"
	KeyFile       = "file"
	KeyPart       = "part"
	KeyFiles      = "files"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Format(f string) slog.Attr       { return slog.String(KeyFormat, f) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Anchor(name string) slog.Attr    { return slog.String(KeyAnchor, name) }
func File(rel string) slog.Attr       { return slog.String(KeyFile, rel) }
func Part(label string) slog.Attr     { return slog.String(KeyPart, label) }
func Files(n int) slog.Attr           { return slog.Int(KeyFiles, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
