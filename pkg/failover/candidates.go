package failover

// Catalog exposes the configured providers and their model catalogs to the
// candidate resolver. Provider order is registration order; model order is
// catalog order.
type Catalog interface {
	ProviderNames() []string
	ProviderModels(provider string) []string
}

// ResolveCandidates produces the ordered, deduplicated candidate list for
// one orchestration attempt:
//
//  1. the preferred pair
//  2. each explicit fallback, in the order given
//  3. every other model of the preferred provider, in catalog order
//  4. the first model of every other configured provider
//
// Candidates whose provider is not in the catalog are skipped. Staying on
// the preferred provider before spreading across providers keeps the
// user's provider choice sticky for as long as it has models left.
func ResolveCandidates(preferred Candidate, fallbacks []Candidate, catalog Catalog) []Candidate {
	configured := make(map[string]bool)
	for _, name := range catalog.ProviderNames() {
		configured[name] = true
	}

	seen := make(map[string]bool)
	var out []Candidate

	add := func(c Candidate) {
		if c.Provider == "" || c.Model == "" || !configured[c.Provider] {
			return
		}
		if seen[c.Key()] {
			return
		}
		seen[c.Key()] = true
		out = append(out, c)
	}

	add(preferred)

	for _, fb := range fallbacks {
		add(fb)
	}

	for _, model := range catalog.ProviderModels(preferred.Provider) {
		add(Candidate{Provider: preferred.Provider, Model: model})
	}

	for _, name := range catalog.ProviderNames() {
		if name == preferred.Provider {
			continue
		}
		models := catalog.ProviderModels(name)
		if len(models) == 0 {
			continue
		}
		add(Candidate{Provider: name, Model: models[0]})
	}

	return out
}
