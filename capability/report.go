// Package capability decides whether the GPU rendering path is usable.
//
// A Prober acquires a short-lived rendering context per API rung and reports
// its limits; the Detector applies the rule set once and memoises the Report.
package capability

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// API is one rung of the context acquisition ladder, most capable first.
type API string

const (
	APIModern       API = "modern"       // WebGL2 / OpenGL 3.3+ core
	APILegacy       API = "legacy"       // WebGL1 / OpenGL 2.1
	APIExperimental API = "experimental" // experimental-webgl / compatibility profile
)

// Ladder is the acquisition order.
var Ladder = []API{APIModern, APILegacy, APIExperimental}

// Fallback is the recommended rendering path when the GPU path is not ideal.
type Fallback string

const (
	FallbackNone   Fallback = "none"
	FallbackCanvas Fallback = "canvas"
	FallbackCSS    Fallback = "css"
)

// Limits is what a probed context reports.
type Limits struct {
	MaxTextureSize            int      `json:"maxTextureSize"`
	MaxVertexUniformVectors   int      `json:"maxVertexUniformVectors"`
	MaxFragmentUniformVectors int      `json:"maxFragmentUniformVectors"`
	MaxVaryingVectors         int      `json:"maxVaryingVectors"`
	MaxVertexAttribs          int      `json:"maxVertexAttribs"`
	MaxDrawBuffers            int      `json:"maxDrawBuffers"`
	Extensions                []string `json:"extensions"`
	Renderer                  string   `json:"renderer"`
	Vendor                    string   `json:"vendor"`
	Version                   string   `json:"version"`
}

// Capabilities are the limits of the context that was acquired.
type Capabilities struct {
	Limits
	API       API  `json:"api"`
	ModernAPI bool `json:"modernApi"`
}

// HasExtension reports whether ext is in the extension list.
func (c *Capabilities) HasExtension(ext string) bool {
	for _, e := range c.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Report is the compatibility verdict.
type Report struct {
	Supported           bool          `json:"isSupported"`
	Capabilities        *Capabilities `json:"capabilities"`
	RecommendedFallback Fallback      `json:"recommendedFallback"`
	Warnings            []string      `json:"warnings"`
	Errors              []string      `json:"errors"`
}

// LogValue implements slog.LogValuer.
func (r Report) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Bool("supported", r.Supported),
		slog.String("fallback", string(r.RecommendedFallback)),
		slog.Int("warnings", len(r.Warnings)),
		slog.Int("errors", len(r.Errors)),
	}
	if r.Capabilities != nil {
		attrs = append(attrs,
			slog.String("api", string(r.Capabilities.API)),
			slog.String("renderer", r.Capabilities.Renderer),
			slog.Int("max_texture", r.Capabilities.MaxTextureSize),
		)
	}
	return slog.GroupValue(attrs...)
}

// WriteJSON writes the report as indented JSON.
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding capability report: %w", err)
	}
	return nil
}

// ReadReport parses a report written by WriteJSON.
func ReadReport(r io.Reader) (Report, error) {
	var rep Report
	if err := json.NewDecoder(r).Decode(&rep); err != nil {
		return Report{}, fmt.Errorf("decoding capability report: %w", err)
	}
	return rep, nil
}

// LoadReport reads a report file.
func LoadReport(path string) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("opening capability report: %w", err)
	}
	defer f.Close()
	return ReadReport(f)
}
