// Package pricing resolves the active pricing package of a service and the
// prices shown for it. Every function here is pure and total.
package pricing

import (
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/vendorhub/internal/catalog/domain"
)

type Prices struct {
	Retail float64  `json:"retail"`
	Pro    float64  `json:"pro"`
	CoPay  *float64 `json:"co_pay"`
	PayNow float64  `json:"pay_now"`
}

type Resolution struct {
	Package *domain.PricingPackage `json:"package"`
	Prices  Prices                 `json:"prices"`
}

// ResolveActivePackage picks the package that applies to svc. The first
// match wins: the requested id, the service default, a popular or default
// flagged package, then the lowest sort order. It returns nil when the
// service has no packages.
func ResolveActivePackage(svc domain.Service, requested snowflake.ID) *domain.PricingPackage {
	packages := svc.Packages
	if len(packages) == 0 {
		return nil
	}

	if requested != 0 {
		if pkg := findPackage(packages, requested); pkg != nil {
			return pkg
		}
	}
	if svc.DefaultPackageID != nil && *svc.DefaultPackageID != 0 {
		if pkg := findPackage(packages, *svc.DefaultPackageID); pkg != nil {
			return pkg
		}
	}
	for i := range packages {
		if packages[i].Popular || packages[i].IsDefault {
			return &packages[i]
		}
	}

	lowest := 0
	for i := 1; i < len(packages); i++ {
		if packages[i].SortOrder < packages[lowest].SortOrder {
			lowest = i
		}
	}
	return &packages[lowest]
}

func findPackage(packages []domain.PricingPackage, id snowflake.ID) *domain.PricingPackage {
	for i := range packages {
		if packages[i].ID == id {
			return &packages[i]
		}
	}
	return nil
}

// PricesForPackage computes display prices. Package values win over the
// service strings; pkg may be nil.
func PricesForPackage(svc domain.Service, pkg *domain.PricingPackage, isPro bool) Prices {
	var pkgRetail, pkgPro, pkgCoPay *float64
	if pkg != nil {
		pkgRetail, pkgPro, pkgCoPay = pkg.RetailPrice, pkg.ProPrice, pkg.CoPayPrice
	}

	retail, ok := pick(pkgRetail, &svc.RetailPrice)
	if !ok {
		retail = 0
	}
	pro, ok := pick(pkgPro, svc.ProPrice)
	if !ok {
		pro = retail
	}

	var coPay *float64
	if value, ok := pick(pkgCoPay, svc.CoPayPrice); ok {
		coPay = &value
	}

	payNow := retail
	if isPro {
		payNow = pro
	}

	return Prices{
		Retail: retail,
		Pro:    pro,
		CoPay:  coPay,
		PayNow: payNow,
	}
}

// ResolvePricing combines package resolution and price computation.
func ResolvePricing(svc domain.Service, requested snowflake.ID, isPro bool) Resolution {
	pkg := ResolveActivePackage(svc, requested)
	return Resolution{
		Package: pkg,
		Prices:  PricesForPackage(svc, pkg, isPro),
	}
}

func pick(pkgValue *float64, svcValue *string) (float64, bool) {
	if pkgValue != nil && usable(*pkgValue) {
		return *pkgValue, true
	}
	if svcValue == nil {
		return 0, false
	}
	return ParsePrice(*svcValue)
}

func usable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// ParsePrice reads a price out of display text such as "$1,250.00/mo".
// Everything but digits and dots is dropped and the longest leading decimal
// is parsed, so "1.2.3" reads as 1.2. ok is false when no digits remain.
func ParsePrice(raw string) (float64, bool) {
	var cleaned strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' {
			cleaned.WriteRune(r)
		}
	}

	literal, ok := leadingDecimal(cleaned.String())
	if !ok {
		return 0, false
	}

	value, err := decimal.NewFromString(literal)
	if err != nil {
		return 0, false
	}
	f := value.InexactFloat64()
	if !usable(f) {
		return 0, false
	}
	return f, true
}

func leadingDecimal(s string) (string, bool) {
	end := 0
	digits := 0
	for end < len(s) && s[end] != '.' {
		end++
		digits++
	}
	if end < len(s) && s[end] == '.' {
		frac := end + 1
		for frac < len(s) && s[frac] != '.' {
			frac++
		}
		if frac > end+1 {
			digits += frac - end - 1
			end = frac
		}
	}
	if digits == 0 {
		return "", false
	}

	literal := strings.TrimSuffix(s[:end], ".")
	if strings.HasPrefix(literal, ".") {
		literal = "0" + literal
	}
	return literal, true
}
