package server

import (
	"embed"
	"html/template"
)

//go:embed templates/challenge.tmpl
var templateFS embed.FS

// challengePage is the data the challenge template is rendered with.
type challengePage struct {
	SubmitPath     string
	Challenge      string
	DifficultyBits uint8
	ExpiresAt      uint64
	IntegrityTag   string
}

func parseChallengeTemplate() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/challenge.tmpl")
}
