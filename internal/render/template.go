package render

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jnst/certificate-issuance/internal/model"
)

// Placeholders available in line text and in the email message.
const (
	PlaceholderName      = "{name}"
	PlaceholderEvent     = "{event}"
	PlaceholderDate      = "{date}"
	PlaceholderOrganizer = "{organizer}"
	PlaceholderEmail     = "{email}"
)

// Line is one centered line of certificate text.
type Line struct {
	// Name labels the line in render errors.
	Name string  `yaml:"name"`
	Text string  `yaml:"text"`
	Size float64 `yaml:"size"`
	// MinSize is the smallest size the line may shrink to; zero pins the line at Size.
	MinSize float64 `yaml:"min_size,omitempty"`
	// SpaceBefore is blank space above the line, in multiples of its line height.
	SpaceBefore float64 `yaml:"space_before,omitempty"`
}

func (l Line) minSize() float64 {
	if l.MinSize <= 0 || l.MinSize > l.Size {
		return l.Size
	}

	return l.MinSize
}

// ContentBox is the fixed block, centered on the page, that holds all lines.
type ContentBox struct {
	Width   float64 `yaml:"width"`
	Height  float64 `yaml:"height"`
	OffsetY float64 `yaml:"offset_y"`
}

// MessageTemplate is the email sent with the certificate.
type MessageTemplate struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

// CertificateTemplate describes the fixed certificate layout and its email message.
type CertificateTemplate struct {
	PageSize       string          `yaml:"page_size"`
	Orientation    string          `yaml:"orientation"`
	Box            ContentBox      `yaml:"content_box"`
	FontFamily     string          `yaml:"font_family"`
	TextColor      [3]int          `yaml:"text_color,flow"`
	LineSpacing    float64         `yaml:"line_spacing"`
	Lines          []Line          `yaml:"lines"`
	DateLayout     string          `yaml:"date_layout"`
	Organizer      string          `yaml:"organizer"`
	Title          string          `yaml:"title"`
	AttachmentName string          `yaml:"attachment_name"`
	Message        MessageTemplate `yaml:"message"`
}

// Option customizes a template built by DefaultTemplate.
type Option func(*CertificateTemplate)

// WithOrganizer sets the organizer printed on the certificate and in the email.
func WithOrganizer(organizer string) Option {
	return func(t *CertificateTemplate) { t.Organizer = organizer }
}

// WithLines replaces the certificate lines.
func WithLines(lines ...Line) Option {
	return func(t *CertificateTemplate) { t.Lines = append([]Line(nil), lines...) }
}

// WithContentBox sets the content box dimensions.
func WithContentBox(box ContentBox) Option {
	return func(t *CertificateTemplate) { t.Box = box }
}

// WithMessage sets the email subject and body.
func WithMessage(subject, body string) Option {
	return func(t *CertificateTemplate) { t.Message = MessageTemplate{Subject: subject, Body: body} }
}

// WithDateLayout sets the Go time layout used for {date}.
func WithDateLayout(layout string) Option {
	return func(t *CertificateTemplate) { t.DateLayout = layout }
}

// WithAttachmentName sets the attachment file name shown to recipients.
func WithAttachmentName(name string) Option {
	return func(t *CertificateTemplate) { t.AttachmentName = name }
}

const defaultBody = `Dear {name},

Congratulations! Attached is your certificate for participating in {event} organized by {organizer}. ` +
	`Your dedication and skills truly stood out, making a significant contribution to the success of the event. ` +
	`We appreciate your passion for innovation and look forward to seeing you at future events!

Best regards,
The {organizer} Team`

// DefaultTemplate returns the participation certificate on US Letter paper.
func DefaultTemplate(opts ...Option) CertificateTemplate {
	t := CertificateTemplate{
		PageSize:    "Letter",
		Orientation: "P",
		Box:         ContentBox{Width: 400, Height: 300, OffsetY: 10},
		FontFamily:  "Helvetica",
		LineSpacing: 1.2,
		Lines: []Line{
			{Name: "heading", Text: "This is to certify that", Size: 20},
			{Name: "name", Text: PlaceholderName, Size: 24, MinSize: 12},
			{Name: "participation", Text: "has successfully participated in", Size: 16, SpaceBefore: 1},
			{Name: "event", Text: PlaceholderEvent, Size: 20, MinSize: 10},
			{Name: "organizer", Text: "organized by " + PlaceholderOrganizer, Size: 16, MinSize: 10, SpaceBefore: 1},
			{Name: "date", Text: "on " + PlaceholderDate, Size: 16},
		},
		DateLayout:     "January 2, 2006",
		Organizer:      "HackMaster Hackathon",
		Title:          "Certificate of Participation",
		AttachmentName: "certificate.pdf",
		Message:        MessageTemplate{Subject: "Certificate", Body: defaultBody},
	}

	for _, opt := range opts {
		opt(&t)
	}

	return t
}

// LoadTemplate reads a YAML template; fields absent from the file keep their defaults.
func LoadTemplate(path string) (CertificateTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CertificateTemplate{}, fmt.Errorf("failed to read template: %w", err)
	}

	return ParseTemplate(data)
}

// ParseTemplate decodes a YAML template over the defaults.
func ParseTemplate(data []byte) (CertificateTemplate, error) {
	t := DefaultTemplate()
	if err := yaml.Unmarshal(data, &t); err != nil {
		return CertificateTemplate{}, fmt.Errorf("failed to parse template: %w", err)
	}

	if err := t.Validate(); err != nil {
		return CertificateTemplate{}, err
	}

	return t, nil
}

// Validate checks the structural constraints that do not depend on page metrics.
func (t CertificateTemplate) Validate() error {
	var problems []string

	if t.Box.Width <= 0 || t.Box.Height <= 0 {
		problems = append(problems, "content box must have positive width and height")
	}

	if t.LineSpacing <= 0 {
		problems = append(problems, "line_spacing must be positive")
	}

	if len(t.Lines) == 0 {
		problems = append(problems, "at least one line is required")
	}

	for i, l := range t.Lines {
		if l.Size <= 0 {
			problems = append(problems, fmt.Sprintf("line %d: size must be positive", i))
		}

		if l.SpaceBefore < 0 {
			problems = append(problems, fmt.Sprintf("line %d: space_before must not be negative", i))
		}
	}

	if t.DateLayout == "" {
		problems = append(problems, "date_layout is required")
	}

	if t.AttachmentName == "" {
		problems = append(problems, "attachment_name is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid template: %s", strings.Join(problems, "; "))
	}

	return nil
}

// Digest fingerprints the template so document identifiers change with the layout.
func (t CertificateTemplate) Digest() string {
	data, err := yaml.Marshal(t)
	if err != nil {
		return ""
	}

	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:8])
}

// Marshal encodes the template as YAML.
func (t CertificateTemplate) Marshal() ([]byte, error) {
	return yaml.Marshal(t)
}

func (t CertificateTemplate) replacer(rec model.ParticipantRecord) *strings.Replacer {
	return strings.NewReplacer(
		PlaceholderName, rec.FullName,
		PlaceholderEvent, rec.EventName,
		PlaceholderDate, rec.EventDate.Format(t.DateLayout),
		PlaceholderOrganizer, t.Organizer,
		PlaceholderEmail, rec.Email,
	)
}

// MessageFor expands the email message for a record.
func (t CertificateTemplate) MessageFor(rec model.ParticipantRecord) model.Message {
	r := t.replacer(rec)

	return model.Message{
		Subject: r.Replace(t.Message.Subject),
		Body:    r.Replace(t.Message.Body),
	}
}
