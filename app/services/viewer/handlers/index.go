package handlers

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"
	"os"
)

// index renders the dashboard page with the coordinator location baked in
// so the browser polls the right endpoints.
type index struct {
	tmpl           *template.Template
	coordinatorURL string
}

func newIndex(coordinatorURL string) (*index, error) {
	data, err := os.ReadFile("app/services/viewer/assets/views/index.html")
	if err != nil {
		return nil, fmt.Errorf("open index page: %w", err)
	}

	tmpl, err := template.New("index").Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse index page: %w", err)
	}

	ig := index{
		tmpl:           tmpl,
		coordinatorURL: coordinatorURL,
	}

	return &ig, nil
}

func (ig *index) handler(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	vars := struct {
		CoordinatorURL string
	}{
		CoordinatorURL: ig.coordinatorURL,
	}

	var b bytes.Buffer
	if err := ig.tmpl.Execute(&b, vars); err != nil {
		return fmt.Errorf("render index page: %w", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := b.WriteTo(w); err != nil {
		return fmt.Errorf("write index page: %w", err)
	}

	return nil
}
