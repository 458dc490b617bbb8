package bcv

// DeriveRates turns one scrape into per-currency rates against the company
// base currency, quoted as target units per one base unit. A VES (or legacy
// VEF) base inverts the published quotes; a USD base uses them directly and
// crosses EUR through USD. Other bases are not supported and yield nothing.
func DeriveRates(baseCurrency string, res Result, available []string) map[string]float64 {
	rates := make(map[string]float64)
	wanted := make(map[string]bool, len(available))
	for _, code := range available {
		wanted[code] = true
	}

	switch baseCurrency {
	case "VES", "VEF":
		if wanted["USD"] && res.USD > 0 {
			rates["USD"] = 1.0 / res.USD
		}
		if wanted["EUR"] && res.EUR > 0 {
			rates["EUR"] = 1.0 / res.EUR
		}
	case "USD":
		if wanted["VES"] && res.USD > 0 {
			rates["VES"] = res.USD
		}
		if wanted["VEF"] && res.USD > 0 {
			rates["VEF"] = res.USD
		}
		if wanted["EUR"] && res.EUR > 0 && res.USD > 0 {
			rates["EUR"] = res.EUR / res.USD
		}
	}
	return rates
}
