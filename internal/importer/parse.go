// Package importer turns free-text account batches into records. It never
// touches storage; merging is done by service.ImportService.
package importer

import (
	"regexp"
	"strings"

	"github.com/lihengcn/GeminiEligibilityCheck/internal/model"
)

const (
	fieldSeparator = ";"
	minFields      = 3
)

var lineSplitter = regexp.MustCompile(`\r?\n`)

// Template is the column layout of a record line.
type Template string

const (
	TemplateAuto          Template = "AUTO"
	TemplateToken         Template = "TOKEN"
	TemplateRecovery      Template = "RECOVERY"
	TemplateTokenRecovery Template = "TOKEN_RECOVERY"
)

type column int

const (
	colPassword column = iota
	colRecoveryEmail
	colAuthenticatorToken
	colAppPassword
	colAuthenticatorURL
	colMessagesURL
)

// Columns after the email, per template.
var layouts = map[Template][]column{
	TemplateToken:         {colPassword, colAuthenticatorToken, colAppPassword, colAuthenticatorURL, colMessagesURL},
	TemplateRecovery:      {colPassword, colRecoveryEmail, colAuthenticatorToken},
	TemplateTokenRecovery: {colPassword, colAuthenticatorToken, colRecoveryEmail},
}

// ParseTemplate maps a template name to its value. Blank means AUTO.
func ParseTemplate(s string) (Template, bool) {
	switch t := Template(strings.ToUpper(strings.TrimSpace(s))); t {
	case "":
		return TemplateAuto, true
	case TemplateAuto, TemplateToken, TemplateRecovery, TemplateTokenRecovery:
		return t, true
	default:
		return "", false
	}
}

// Record is one valid line of a batch.
type Record struct {
	Email    string
	Template Template
	Patch    model.ProfilePatch
}

// Line is the outcome of parsing one non-blank input line. Record is nil
// when the line was skipped, with Reason saying why.
type Line struct {
	Number int
	Record *Record
	Reason string
}

// Parse splits text into lines and parses each non-blank one. Blank lines
// produce no entry at all.
func Parse(text string, tmpl Template) []Line {
	var out []Line
	for i, raw := range lineSplitter.Split(text, -1) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		rec, reason := ParseLine(raw, tmpl)
		out = append(out, Line{Number: i + 1, Record: rec, Reason: reason})
	}
	return out
}

// ParseLine parses a single trimmed, non-blank line.
func ParseLine(line string, tmpl Template) (*Record, string) {
	fields := splitFields(line)
	if len(fields) < minFields {
		return nil, "too few fields"
	}
	email := fields[0]
	if LooksLikeHeader(email) {
		return nil, "header or empty key"
	}

	if tmpl == "" || tmpl == TemplateAuto {
		tmpl = InferTemplate(fields)
	}
	layout, ok := layouts[tmpl]
	if !ok {
		return nil, "unknown template"
	}

	rec := &Record{Email: email, Template: tmpl}
	for i, col := range layout {
		idx := i + 1
		if idx >= len(fields) {
			break
		}
		value := fields[idx]
		setColumn(&rec.Patch, col, &value)
	}
	return rec, ""
}

// InferTemplate picks a layout from the candidate fields. Only lines with
// three or four fields are ambiguous; the column that looks like an email
// wins, and the token layout is the fallback.
func InferTemplate(fields []string) Template {
	if len(fields) < 3 || len(fields) > 4 {
		return TemplateToken
	}
	third := LooksLikeEmail(fields[2])
	fourth := len(fields) == 4 && LooksLikeEmail(fields[3])
	switch {
	case third && !fourth:
		return TemplateRecovery
	case fourth && !third:
		return TemplateTokenRecovery
	default:
		return TemplateToken
	}
}

// LooksLikeEmail is a shape check, not validation: a non-empty local part,
// an '@', and a domain with a non-empty segment after its last dot.
func LooksLikeEmail(s string) bool {
	s = strings.TrimSpace(s)
	at := strings.LastIndex(s, "@")
	if at <= 0 {
		return false
	}
	domain := s[at+1:]
	dot := strings.LastIndex(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

// LooksLikeHeader reports keys that cannot be account emails: empty,
// reserved column names, or template placeholders.
func LooksLikeHeader(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	switch k {
	case "", "email", "login", "account":
		return true
	}
	return strings.ContainsAny(k, "{}")
}

func setColumn(p *model.ProfilePatch, col column, v *string) {
	switch col {
	case colPassword:
		p.Password = v
	case colRecoveryEmail:
		p.RecoveryEmail = v
	case colAuthenticatorToken:
		p.AuthenticatorToken = v
	case colAppPassword:
		p.AppPassword = v
	case colAuthenticatorURL:
		p.AuthenticatorURL = v
	case colMessagesURL:
		p.MessagesURL = v
	}
}

func splitFields(line string) []string {
	fields := strings.Split(line, fieldSeparator)
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}
