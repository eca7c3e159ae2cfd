// Package mailer renders the contact and calculator emails and hands them to
// an SMTP relay.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/shopspring/decimal"

	"github.com/kraabmod/profiles-service/internal/logging"
	"github.com/kraabmod/profiles-service/internal/metrics"
)

const (
	contactSubject    = "New Client Request!"
	calculatorSubject = "New Client Request From Calculator!"

	kindContact    = "contact"
	kindCalculator = "calculator"
)

// ContactRequest is the text part of the contact form.
type ContactRequest struct {
	Name       string
	LastName   string
	City       string
	PostalCode string
	Street     string
	Telephone  string
	Message    string
}

// OrderItem is one calculator line: Value units at Price each.
type OrderItem struct {
	Title string          `json:"title"`
	Value decimal.Decimal `json:"value"`
	Unit  string          `json:"unit"`
	Price decimal.Decimal `json:"price"`
}

// Total is Price × Value.
func (i OrderItem) Total() decimal.Decimal {
	return i.Price.Mul(i.Value)
}

// CalculatorOrder is the body of POST /api/sendEmailFromCalculator.
type CalculatorOrder struct {
	Name            string          `json:"name" validate:"required"`
	Email           string          `json:"email" validate:"required"`
	Message         string          `json:"message"`
	Payment         string          `json:"payment"`
	Phone           string          `json:"phone"`
	OrderDataParams []OrderItem     `json:"orderDataParams" validate:"required,min=1"`
	TextureList     []string        `json:"textureList"`
	TotalOrderSum   decimal.Decimal `json:"totalOrderSum"`
	CeilingTitle    string          `json:"ceilingTitle"`
}

type orderLine struct {
	Title string
	Value string
	Unit  string
	Total string
}

// Sender is what the HTTP layer needs from the mailer.
type Sender interface {
	SendContactRequest(ctx context.Context, req ContactRequest, attachments []Attachment) error
	SendCalculatorOrder(ctx context.Context, order CalculatorOrder) error
}

// Mailer renders messages and delivers them through a Transport.
type Mailer struct {
	transport Transport
	from      string
	to        string
}

// New creates a Mailer sending from and to the given addresses.
func New(transport Transport, from, to string) *Mailer {
	return &Mailer{transport: transport, from: from, to: to}
}

// SendContactRequest mails the contact form with any uploaded files attached.
func (m *Mailer) SendContactRequest(ctx context.Context, req ContactRequest, attachments []Attachment) error {
	html, err := render(contactTemplate, req)
	if err != nil {
		return err
	}
	return m.send(ctx, kindContact, &Message{
		From:        m.from,
		To:          m.to,
		Subject:     contactSubject,
		HTML:        html,
		Attachments: attachments,
	})
}

// SendCalculatorOrder mails a calculator order with per-line totals.
func (m *Mailer) SendCalculatorOrder(ctx context.Context, order CalculatorOrder) error {
	html, err := renderCalculatorOrder(order)
	if err != nil {
		return err
	}
	return m.send(ctx, kindCalculator, &Message{
		From:    m.from,
		To:      m.to,
		Subject: calculatorSubject,
		HTML:    html,
	})
}

func (m *Mailer) send(ctx context.Context, kind string, msg *Message) error {
	if err := m.transport.Send(ctx, msg); err != nil {
		metrics.MailSent.WithLabelValues(kind, "failure").Inc()
		logging.Ctx(ctx).Error().Err(err).Str("kind", kind).Msg("Email sending error")
		return fmt.Errorf("mailer: send %s email: %w", kind, err)
	}
	metrics.MailSent.WithLabelValues(kind, "success").Inc()
	logging.Ctx(ctx).Info().Str("kind", kind).Int("attachments", len(msg.Attachments)).Msg("Email sent")
	return nil
}

func renderCalculatorOrder(order CalculatorOrder) (string, error) {
	lines := make([]orderLine, 0, len(order.OrderDataParams))
	for _, item := range order.OrderDataParams {
		lines = append(lines, orderLine{
			Title: item.Title,
			Value: item.Value.String(),
			Unit:  item.Unit,
			Total: item.Total().String(),
		})
	}

	return render(calculatorTemplate, struct {
		CalculatorOrder
		Lines         []orderLine
		TotalOrderSum string
	}{
		CalculatorOrder: order,
		Lines:           lines,
		TotalOrderSum:   order.TotalOrderSum.String(),
	})
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("mailer: render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
