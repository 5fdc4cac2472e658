package menu

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Languages carried by category labels.
const (
	LangEN = "en"
	LangAR = "ar"
	LangPT = "pt"
)

type staticCategory struct {
	slug   string
	emoji  string
	labels map[string]string
}

var staticCategories = []staticCategory{
	{slug: "mains", emoji: "🥘", labels: map[string]string{LangEN: "Mains", LangAR: "الأطباق الرئيسية", LangPT: "Pratos Principais"}},
	{slug: "snacks", emoji: "🥟", labels: map[string]string{LangEN: "Snacks", LangAR: "الوجبات الخفيفة", LangPT: "Petiscos"}},
	{slug: "desserts", emoji: "🍨", labels: map[string]string{LangEN: "Desserts", LangAR: "الحلويات", LangPT: "Sobremesas"}},
	{slug: "combos", emoji: "📦", labels: map[string]string{LangEN: "Combos", LangAR: "الكومبو", LangPT: "Combos"}},
	{slug: "promos", emoji: "🔥", labels: map[string]string{LangEN: "Promos", LangAR: "العروض", LangPT: "Promoções"}},
}

// staticID derives a stable id so fallback entries keep the same identity
// across processes.
func staticID(kind, key string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("foodorder:"+kind+":"+key))
}

// FallbackCategories is the static list served when the store is unreachable
// or has no categories.
func FallbackCategories() []CategoryView {
	out := make([]CategoryView, 0, len(staticCategories))
	for i, c := range staticCategories {
		labels := make(map[string]string, len(c.labels))
		for k, v := range c.labels {
			labels[k] = v
		}
		out = append(out, CategoryView{
			ID:        staticID("category", c.slug),
			Slug:      c.slug,
			Name:      c.labels[LangEN],
			Emoji:     c.emoji,
			SortOrder: i + 1,
			Labels:    labels,
		})
	}
	return out
}

type staticItem struct {
	name, description, price, category, badge string
}

var staticCatalog = []staticItem{
	{"Açaí Bowl", "Frozen açaí topped with granola, banana and fresh strawberries.", "28", "desserts", "Popular"},
	{"Combo Brasileiro", "Picanha + Feijoada + Açaí Bowl.", "99", "combos", "Save 20%"},
	{"Estrogonofe de Frango", "Creamy chicken stroganoff with rice and crispy potato sticks.", "35", "mains", ""},
	{"Feijoada Completa", "Black bean stew with rice, farofa, orange and collard greens.", "42", "mains", "Traditional"},
	{"Happy Hour Deal", "Any main dish and a drink. Available 2-5 PM.", "39", "promos", "🔥 Limited"},
	{"Pastel de Carne", "Crispy fried pastry stuffed with seasoned beef.", "15", "snacks", ""},
	{"Picanha Grelhada", "Grilled picanha steak with rice, beans and farofa.", "45", "mains", "Best Seller"},
	{"Salmão Grelhado", "Grilled salmon fillet with rice, salad and vegetables.", "55", "mains", "Premium"},
}

// StaticCatalog is the bundled item list, sorted by name. Items are display
// only: they do not exist in the database and cannot be checked out.
func StaticCatalog() []ItemView {
	out := make([]ItemView, 0, len(staticCatalog))
	for _, it := range staticCatalog {
		categoryID := staticID("category", it.category)
		view := ItemView{
			ID:          staticID("item", it.name),
			Name:        it.name,
			Description: it.description,
			Price:       decimal.RequireFromString(it.price),
			CategoryID:  &categoryID,
			IsAvailable: true,
		}
		if it.badge != "" {
			badge := it.badge
			view.Badge = &badge
		}
		out = append(out, view)
	}
	return out
}
