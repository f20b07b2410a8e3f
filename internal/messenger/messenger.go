package messenger

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/template"

	"github.com/julianbeese/immo_search/internal/domain"
	"github.com/julianbeese/immo_search/internal/ingest"
)

// Sender identifies who asks for the visit
type Sender struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
	Phone string `yaml:"phone"`
}

// Generator creates visit-request messages from templates
type Generator struct {
	template *template.Template
	sender   Sender
}

// TemplateData contains data for message template
type TemplateData struct {
	Title    string
	Address  string
	City     string
	ZipCode  string
	Type     string
	Price    string
	Surface  string
	Rooms    string
	RentType string

	SenderName  string
	SenderEmail string
	SenderPhone string
}

// NewGenerator creates a new message generator. A missing template file
// falls back to the built-in template; an unreadable or invalid one is an error.
func NewGenerator(templatePath string, sender Sender) (*Generator, error) {
	content := []byte(defaultTemplate)
	if templatePath != "" {
		b, err := os.ReadFile(templatePath)
		switch {
		case err == nil:
			content = b
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read template: %w", err)
		}
	}

	tmpl, err := template.New("message").Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	return &Generator{
		template: tmpl,
		sender:   sender,
	}, nil
}

// Generate creates a message for a listing
func (g *Generator) Generate(record *domain.PropertyRecord) (string, error) {
	data := TemplateData{
		Title:       record.Title,
		Address:     record.Address,
		City:        record.City,
		ZipCode:     record.ZipCode,
		Type:        record.Type,
		Price:       formatNumber(record.Price),
		Surface:     formatNumber(record.Surface),
		Rooms:       formatNumber(ingest.First(record.Bedrooms, record.Rooms, record.Pieces)),
		RentType:    rentTypeLabel(record.RentType),
		SenderName:  g.sender.Name,
		SenderEmail: g.sender.Email,
		SenderPhone: g.sender.Phone,
	}

	var buf bytes.Buffer
	if err := g.template.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render message: %w", err)
	}

	return strings.TrimSpace(buf.String()), nil
}

func formatNumber(v *float64) string {
	if v == nil {
		return ""
	}
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", *v), "0"), ".")
}

func rentTypeLabel(rt domain.RentType) string {
	switch rt {
	case domain.RentSeasonal:
		return "location saisonnière"
	case domain.RentLongTerm:
		return "location longue durée"
	}
	return "location"
}

const defaultTemplate = `Bonjour,

Je suis intéressé(e) par votre annonce « {{.Title}} »{{if .City}} à {{.City}}{{end}}{{if .Price}} ({{.Price}} €){{end}}, proposée en {{.RentType}}.

Serait-il possible d'organiser une visite prochainement ? Je suis disponible en semaine comme le week-end.

{{if .SenderPhone}}Vous pouvez me joindre au {{.SenderPhone}}{{if .SenderEmail}} ou par e-mail à {{.SenderEmail}}{{end}}.
{{else if .SenderEmail}}Vous pouvez me joindre par e-mail à {{.SenderEmail}}.
{{end}}
Cordialement,
{{if .SenderName}}{{.SenderName}}{{end}}
`
