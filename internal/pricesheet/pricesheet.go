// Package pricesheet renders a printable PDF of a service's packages.
package pricesheet

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"

	"github.com/smallbiznis/vendorhub/internal/catalog/domain"
	"github.com/smallbiznis/vendorhub/internal/clock"
	"github.com/smallbiznis/vendorhub/internal/pricing"
)

var Module = fx.Module("pricesheet",
	fx.Provide(New),
)

type Renderer interface {
	Render(ctx context.Context, svc domain.Service, isPro bool) (io.Reader, error)
}

type renderer struct {
	clock clock.Clock
}

func New(c clock.Clock) Renderer {
	if c == nil {
		c = clock.New()
	}
	return &renderer{clock: c}
}

func (r *renderer) Render(ctx context.Context, svc domain.Service, isPro bool) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, svc.Title, props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	if desc := deref(svc.Description); desc != "" {
		m.AddRow(12, text.NewCol(12, desc, props.Text{Size: 9}))
	}
	meta := "Generated " + r.clock.Now().Format("2006-01-02")
	if website := deref(svc.WebsiteURL); website != "" {
		meta += "  |  " + website
	}
	m.AddRow(8, text.NewCol(12, meta, props.Text{Size: 8, Style: fontstyle.Italic}))

	m.AddRow(10,
		text.NewCol(4, "Package", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Retail", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Pro", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Co-pay", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Pay now", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(2, line.NewCol(12))

	active := pricing.ResolveActivePackage(svc, 0)
	if len(svc.Packages) == 0 {
		prices := pricing.PricesForPackage(svc, nil, isPro)
		m.AddRow(10, priceCols("Standard", prices)...)
	}
	for i := range svc.Packages {
		pkg := &svc.Packages[i]
		prices := pricing.PricesForPackage(svc, pkg, isPro)
		label := pkg.Label
		if active != nil && active.ID == pkg.ID {
			label += " (recommended)"
		}
		m.AddRow(10, priceCols(label, prices)...)

		for _, feature := range pkg.Features {
			mark := "+"
			if !feature.Included {
				mark = "-"
			}
			m.AddRow(5,
				col.New(1),
				text.NewCol(11, mark+" "+feature.Text, props.Text{Size: 8}),
			)
		}
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate price sheet: %w", err)
	}
	return bytes.NewReader(doc.GetBytes()), nil
}

func priceCols(label string, prices pricing.Prices) []core.Col {
	coPay := "-"
	if prices.CoPay != nil {
		coPay = money(*prices.CoPay)
	}
	return []core.Col{
		text.NewCol(4, label, props.Text{Size: 9}),
		text.NewCol(2, money(prices.Retail), props.Text{Size: 9, Align: align.Right}),
		text.NewCol(2, money(prices.Pro), props.Text{Size: 9, Align: align.Right}),
		text.NewCol(2, coPay, props.Text{Size: 9, Align: align.Right}),
		text.NewCol(2, money(prices.PayNow), props.Text{Size: 9, Align: align.Right, Style: fontstyle.Bold}),
	}
}

func money(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// Filename returns the download name for svc's price sheet.
func Filename(svc domain.Service) string {
	name := strings.TrimSpace(svc.Slug)
	if name == "" {
		name = svc.ID.String()
	}
	return name + "-price-sheet.pdf"
}
