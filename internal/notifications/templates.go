package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

type templateName string

const (
	templateInvoice  templateName = "invoice.html"
	templateReceipt  templateName = "receipt.html"
	templateCanceled templateName = "canceled.html"
)

var funcs = template.FuncMap{
	"baht": func(v int64) string { return decimal.NewFromInt(v).StringFixed(2) + " THB" },
	"join": strings.Join,
}

// Renderer holds one parsed template set per email kind, each sharing the layout.
type Renderer struct {
	sets map[templateName]*template.Template
}

func NewRenderer() (*Renderer, error) {
	r := &Renderer{sets: map[templateName]*template.Template{}}
	for _, name := range []templateName{templateInvoice, templateReceipt, templateCanceled} {
		set, err := template.New(string(name)).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+string(name))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.sets[name] = set
	}
	return r, nil
}

func (r *Renderer) render(name templateName, data EmailData) (string, error) {
	set, ok := r.sets[name]
	if !ok {
		return "", fmt.Errorf("unknown template %s", name)
	}
	var buf bytes.Buffer
	if err := set.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// EmailData is everything the templates can show.
type EmailData struct {
	Title           string
	ShopName        string
	ReceiverName    string
	RefID           string
	PaymentMethod   string
	DeliveryType    string
	Lines           []EmailLine
	ShippingFee     int64
	TotalPrice      int64
	PickupLocations []string
	Address         string
	PaymentLink     template.URL
	QRCodeCID       string
	Reason          string
}

type EmailLine struct {
	Name      string
	Amount    int64
	UnitPrice int64
	Subtotal  int64
}
