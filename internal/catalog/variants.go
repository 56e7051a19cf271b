package catalog

// Variant resolution failure codes, returned as values on the tool wire.
const (
	CodeNoVariants               = "no_variants"
	CodeVariantNotFound          = "variant_not_found"
	CodeOptionsNotFound          = "options_not_found"
	CodeVariantSelectionRequired = "variant_selection_required"
	CodeVariantUnavailable       = "variant_unavailable"
	CodeMissingVariantID         = "missing_variant_id"
)

// ResolveVariant picks the variant a basket line refers to. Precedence:
// explicit variant_id, then an option superset match, then the single
// available (or single existing) variant. Unavailable variants are rejected.
// The second return is a failure code from the set above, empty on success.
func ResolveVariant(p *Product, variantID string, options map[string]string) (*Variant, string) {
	variants := p.Variants()
	if len(variants) == 0 {
		return nil, CodeNoVariants
	}

	var chosen *Variant
	switch {
	case variantID != "":
		for i := range variants {
			if variants[i].ID == variantID {
				chosen = &variants[i]
				break
			}
		}
		if chosen == nil {
			return nil, CodeVariantNotFound
		}

	case len(options) > 0:
		want := NormalizeOptions(options)
		for i := range variants {
			if optionsSuperset(variants[i].NormalizedOptions(), want) {
				chosen = &variants[i]
				break
			}
		}
		if chosen == nil {
			return nil, CodeOptionsNotFound
		}

	default:
		var available []*Variant
		for i := range variants {
			if variants[i].Available {
				available = append(available, &variants[i])
			}
		}
		switch {
		case len(available) == 1:
			chosen = available[0]
		case len(variants) == 1:
			chosen = &variants[0]
		default:
			return nil, CodeVariantSelectionRequired
		}
	}

	if !chosen.Available {
		return nil, CodeVariantUnavailable
	}
	if chosen.ID == "" {
		return nil, CodeMissingVariantID
	}
	return chosen, ""
}

// optionsSuperset reports whether have contains every requested name/value
// pair.
func optionsSuperset(have, want map[string]string) bool {
	for name, value := range want {
		if have[name] != value {
			return false
		}
	}
	return true
}
