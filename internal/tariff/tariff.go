// Package tariff extracts time-of-use rates from supplier tariff sheets.
package tariff

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"time"

	pdf "github.com/ledongthuc/pdf"

	"github.com/bher20/enerbill/internal/storage"
)

var (
	nameRe = regexp.MustCompile(`(?i)TARIFF\s*[:\-]?\s*([A-Za-z0-9][A-Za-z0-9 ._\-]*)`)

	peakEnergyRe     = regexp.MustCompile(`(?i)Peak\s+Energy(?:\s+Charge)?:?\s*\$?(\d+\.\d+|\.\d+|\d+)\s*(?:per\s+kWh|/\s*kWh)`)
	standardEnergyRe = regexp.MustCompile(`(?i)Standard\s+Energy(?:\s+Charge)?:?\s*\$?(\d+\.\d+|\.\d+|\d+)\s*(?:per\s+kWh|/\s*kWh)`)
	offPeakEnergyRe  = regexp.MustCompile(`(?i)Off[\s\-]?Peak\s+Energy(?:\s+Charge)?:?\s*\$?(\d+\.\d+|\.\d+|\d+)\s*(?:per\s+kWh|/\s*kWh)`)

	peakPowerRe     = regexp.MustCompile(`(?i)Peak\s+(?:Power|Demand)(?:\s+Charge)?:?\s*\$?(\d+\.\d+|\.\d+|\d+)\s*(?:per\s+kW|/\s*kW)\b`)
	standardPowerRe = regexp.MustCompile(`(?i)Standard\s+(?:Power|Demand)(?:\s+Charge)?:?\s*\$?(\d+\.\d+|\.\d+|\d+)\s*(?:per\s+kW|/\s*kW)\b`)
	offPeakPowerRe  = regexp.MustCompile(`(?i)Off[\s\-]?Peak\s+(?:Power|Demand)(?:\s+Charge)?:?\s*\$?(\d+\.\d+|\.\d+|\d+)\s*(?:per\s+kW|/\s*kW)\b`)
)

// ImportFromPDF opens a tariff sheet PDF at the given path, extracts text,
// and delegates to Parse.
func ImportFromPDF(path string) (*storage.Rate, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	rc, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, fmt.Errorf("read pdf text: %w", err)
	}

	return Parse(buf.String())
}

// Parse extracts the per-period prices from a plain-text tariff sheet. The
// three energy prices are required; power prices are optional and stay nil
// when the sheet does not list a demand charge for the period.
func Parse(text string) (*storage.Rate, error) {
	rate := &storage.Rate{
		Name:      "Imported tariff",
		StartDate: time.Now().UTC(),
	}
	if m := nameRe.FindStringSubmatch(text); len(m) >= 2 {
		rate.Name = m[1]
	}

	var ok bool
	if rate.PeakEnergyPrice, ok = firstFloat(peakEnergyRe, text); !ok {
		return nil, fmt.Errorf("tariff sheet missing peak energy price")
	}
	if rate.StandardEnergyPrice, ok = firstFloat(standardEnergyRe, text); !ok {
		return nil, fmt.Errorf("tariff sheet missing standard energy price")
	}
	if rate.OffPeakEnergyPrice, ok = firstFloat(offPeakEnergyRe, text); !ok {
		return nil, fmt.Errorf("tariff sheet missing off-peak energy price")
	}

	if v, ok := firstFloat(peakPowerRe, text); ok {
		rate.PeakPowerPrice = &v
	}
	if v, ok := firstFloat(standardPowerRe, text); ok {
		rate.StandardPowerPrice = &v
	}
	if v, ok := firstFloat(offPeakPowerRe, text); ok {
		rate.OffPeakPowerPrice = &v
	}

	return rate, nil
}

func firstFloat(re *regexp.Regexp, s string) (float64, bool) {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0, false
	}
	var v float64
	if _, err := fmt.Sscanf(m[1], "%f", &v); err != nil {
		return 0, false
	}
	return v, true
}
