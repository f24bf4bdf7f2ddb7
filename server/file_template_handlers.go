package server

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/rs/zerolog/log"
)

//go:embed templates/*
var templateFiles embed.FS

const contentTypeHTML = "text/html; charset=utf-8"

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplates parses every page of the hub from the embedded filesystem.
func ParseTemplates() (*template.Template, error) {
	return template.ParseFS(TemplateFilesFS(), "*.html")
}

// PageData is shared by every hub page.
type PageData struct {
	AppName string
	User    string // Signed in user, if any
	Error   string
}

func (s *Server) renderTemplate(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		log.Err(err).Str("template", name).Msg("Failed to render template")
	}
}

// ErrorPageData describes an error page.
type ErrorPageData struct {
	PageData
	Status  int
	Title   string
	Message string
}

func (s *Server) renderError(w http.ResponseWriter, status int, user, message string) {
	s.renderTemplate(w, status, "error.html", ErrorPageData{
		PageData: PageData{AppName: s.config.GetAppName(), User: user},
		Status:   status,
		Title:    http.StatusText(status),
		Message:  message,
	})
}
