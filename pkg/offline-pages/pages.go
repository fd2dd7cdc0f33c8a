// Package offlinepages renders the documents served when neither the network nor the cache
// can answer a request. Everything is rendered from the parameters alone; no network or
// cache access happens here.
package offlinepages

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"strings"
	"time"
)

const (
	DefaultEmergencyNumber = "911"
	DefaultGuidePath       = "/offline-medical-guide"
)

//go:embed templates/medical-guide.html.tmpl templates/offline-notice.html.tmpl templates/image-placeholder.svg
var templatesFS embed.FS

var (
	guideTemplate  = template.Must(template.ParseFS(templatesFS, "templates/medical-guide.html.tmpl"))
	noticeTemplate = template.Must(template.ParseFS(templatesFS, "templates/offline-notice.html.tmpl"))
)

// Params are the only inputs of the synthesized documents.
type Params struct {
	// Version of the cache layer that produced the document.
	Version         string
	Date            time.Time
	EmergencyNumber string
	GuidePath       string
}

func (p Params) withDefaults() Params {
	if p.EmergencyNumber == "" {
		p.EmergencyNumber = DefaultEmergencyNumber
	}
	if p.GuidePath == "" {
		p.GuidePath = DefaultGuidePath
	}
	if p.Date.IsZero() {
		p.Date = time.Now()
	}
	return p
}

type pageData struct {
	Version         string
	Date            string
	EmergencyNumber string
	TelURL          template.URL
	GuidePath       string
	Conditions      []Condition
}

func newPageData(p Params) pageData {
	p = p.withDefaults()
	return pageData{
		Version:         p.Version,
		Date:            p.Date.Format("2006-01-02"),
		EmergencyNumber: p.EmergencyNumber,
		TelURL:          TelURL(p.EmergencyNumber),
		GuidePath:       p.GuidePath,
		Conditions:      conditionsFor(p.EmergencyNumber),
	}
}

// TelURL returns a tel: link for the number.
// Only digits, '+', '*' and '#' are kept, so the result is safe to use as a URL.
func TelURL(number string) template.URL {
	var b strings.Builder
	for _, r := range number {
		if (r >= '0' && r <= '9') || r == '+' || r == '*' || r == '#' {
			b.WriteRune(r)
		}
	}
	return template.URL("tel:" + b.String())
}

// Dialable reports whether the number has a digit to dial.
func Dialable(number string) bool {
	return strings.ContainsAny(number, "0123456789")
}

func conditionsFor(number string) []Condition {
	out := make([]Condition, len(Conditions))
	for i, c := range Conditions {
		steps := make([]string, len(c.Steps))
		for j, step := range c.Steps {
			steps[j] = strings.ReplaceAll(step, "{emergency}", number)
		}
		c.Steps = steps
		out[i] = c
	}
	return out
}

// MedicalGuide renders the complete emergency medical reference document.
func MedicalGuide(p Params) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := guideTemplate.Execute(buf, newPageData(p)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// OfflineNotice renders the generic offline document.
func OfflineNotice(p Params) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := noticeTemplate.Execute(buf, newPageData(p)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MinimalNotice is the offline notice as a plain string, for when template rendering fails.
func MinimalNotice(p Params) []byte {
	p = p.withDefaults()
	tel := template.HTMLEscapeString(string(TelURL(p.EmergencyNumber)))
	number := template.HTMLEscapeString(p.EmergencyNumber)
	guide := template.HTMLEscapeString(p.GuidePath)
	return []byte(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>You are offline</title></head><body>` +
		`<h1>You are offline</h1><p><a href="` + tel + `">Emergency? Call ` + number + `</a></p>` +
		`<p><a href="` + guide + `">Open the offline medical guide</a></p>` +
		`<button type="button" onclick="location.reload()">Retry</button></body></html>`)
}

// ImagePlaceholder returns an SVG saying "Image Offline".
func ImagePlaceholder() []byte {
	b, err := templatesFS.ReadFile("templates/image-placeholder.svg")
	if err != nil {
		// the file is embedded, this cannot happen
		panic(err)
	}
	return b
}

// APIError is the body of the offline API error response.
type APIError struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Offline       bool   `json:"offline"`
	EmergencyNote string `json:"emergency_note"`
}

// OfflineAPIError renders the JSON returned for API calls that neither network nor cache can answer.
func OfflineAPIError(p Params) []byte {
	p = p.withDefaults()
	b, err := json.Marshal(APIError{
		Error:   "Offline",
		Message: "You are offline and this information is not available from the cache. Please try again when you are connected.",
		Offline: true,
		EmergencyNote: "If this is a medical emergency, call " + p.EmergencyNumber +
			" immediately. The offline medical guide is available at " + p.GuidePath + ".",
	})
	if err != nil {
		panic(err)
	}
	return b
}
