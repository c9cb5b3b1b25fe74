package portals

import "strings"

// RefItem is one entry of a portal reference-data catalog (makes, models,
// colors, fuels, transmissions, equipments).
type RefItem struct {
	ID   int
	Name string
}

// Curated synonym tables mapping a portal catalog name to the dealer-side
// spellings that should resolve to it. Keys and values are compared in
// normalized form.
var (
	colorSynonyms = map[string][]string{
		"branco":   {"branca", "white", "branco perolizado"},
		"preto":    {"preta", "black", "preto fosco"},
		"prata":    {"cinza prata", "silver"},
		"cinza":    {"grafite", "gray", "grey"},
		"vermelho": {"vermelha", "red", "bordo"},
		"azul":     {"blue", "azul marinho"},
		"verde":    {"green"},
		"bege":     {"champagne", "dourado"},
	}

	fuelSynonyms = map[string][]string{
		"flex":     {"etanol/gasolina", "gasolina/etanol", "bicombustivel"},
		"gasolina": {"gasoline"},
		"diesel":   {"oleo diesel"},
		"eletrico": {"elétrico", "electric"},
		"hibrido":  {"híbrido", "hybrid"},
	}

	transmissionSynonyms = map[string][]string{
		"automatico":   {"automática", "automatic", "automatica"},
		"manual":       {"mecanico", "mecânico"},
		"automatizado": {"semi-automatico", "cvt"},
	}
)

// matchRefItem resolves a dealer-side name against a portal catalog:
// exact normalized match first, then substring containment in either
// direction, then the synonym table. Returns false when nothing matches -
// the caller omits the field rather than guessing.
func matchRefItem(items []RefItem, name string, synonyms map[string][]string) (int, bool) {
	if name == "" {
		return 0, false
	}
	search := normalizeName(name)

	for _, item := range items {
		if normalizeName(item.Name) == search {
			return item.ID, true
		}
	}

	for _, item := range items {
		catalog := normalizeName(item.Name)
		if catalog == "" {
			continue
		}
		if strings.Contains(catalog, search) || strings.Contains(search, catalog) {
			return item.ID, true
		}
	}

	if synonyms != nil {
		for _, item := range items {
			catalog := normalizeName(item.Name)
			variants, ok := synonyms[catalog]
			if !ok {
				continue
			}
			for _, v := range variants {
				if normalizeName(v) == search {
					return item.ID, true
				}
			}
			// Symmetric check: dealer name is the base, catalog is a variant
			if base, ok := synonyms[search]; ok {
				for _, v := range base {
					if normalizeName(v) == catalog {
						return item.ID, true
					}
				}
			}
		}
	}

	return 0, false
}

// matchRefItemExact skips the substring pass, for catalogs where partial
// containment would cross-match ("Azul" vs "Azul Marinho" is fine, but
// make names are too short for it).
func matchRefItemExact(items []RefItem, name string, synonyms map[string][]string) (int, bool) {
	if name == "" {
		return 0, false
	}
	search := normalizeName(name)

	for _, item := range items {
		if normalizeName(item.Name) == search {
			return item.ID, true
		}
	}

	if synonyms != nil {
		for _, item := range items {
			catalog := normalizeName(item.Name)
			for _, v := range synonyms[catalog] {
				if normalizeName(v) == search {
					return item.ID, true
				}
			}
		}
	}

	return 0, false
}
