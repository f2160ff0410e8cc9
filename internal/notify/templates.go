// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

package notify

import (
	"embed"
	"net/url"
	"strings"
	"text/template"

	"github.com/samber/oops"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// templateData is the value message templates render against.
type templateData struct {
	Email     string
	Token     string
	VerifyURL string
}

// renderer renders the subject and body of each message kind.
type renderer struct {
	byKind    map[Kind]*template.Template
	verifyURL string
}

func newRenderer(verifyURL string) (*renderer, error) {
	r := &renderer{byKind: make(map[Kind]*template.Template), verifyURL: verifyURL}
	for _, kind := range []Kind{KindVerification, KindWelcome} {
		tmpl, err := template.ParseFS(templateFS, "templates/"+string(kind)+".tmpl")
		if err != nil {
			return nil, oops.Code("NOTIFY_TEMPLATE_INVALID").With("kind", kind).Wrap(err)
		}
		r.byKind[kind] = tmpl
	}
	return r, nil
}

func (r *renderer) render(kind Kind, email, token string) (subject, body string, err error) {
	tmpl, ok := r.byKind[kind]
	if !ok {
		return "", "", oops.Code("NOTIFY_TEMPLATE_MISSING").With("kind", kind).Errorf("no template for %s", kind)
	}

	data := templateData{Email: email, Token: token, VerifyURL: r.link(token)}

	var sb, bb strings.Builder
	if err := tmpl.ExecuteTemplate(&sb, "subject", data); err != nil {
		return "", "", oops.Code("NOTIFY_RENDER_FAILED").With("kind", kind).With("part", "subject").Wrap(err)
	}
	if err := tmpl.ExecuteTemplate(&bb, "body", data); err != nil {
		return "", "", oops.Code("NOTIFY_RENDER_FAILED").With("kind", kind).With("part", "body").Wrap(err)
	}
	return strings.TrimSpace(sb.String()), bb.String(), nil
}

// link appends the token as a query parameter to the configured verification URL.
func (r *renderer) link(token string) string {
	if token == "" {
		return ""
	}
	u, err := url.Parse(r.verifyURL)
	if err != nil || r.verifyURL == "" {
		return token
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
