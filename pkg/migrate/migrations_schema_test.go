package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestOrdersMigrationGuardsTotals(t *testing.T) {
	content := readMigration(t, "create_orders")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE TABLE IF NOT EXISTS order_items",
		"CHECK (total = subtotal - discount + delivery_fee)",
		"CHECK (discount <= subtotal)",
		"CHECK (quantity > 0)",
		"REFERENCES orders(id) ON DELETE CASCADE",
		"'pending', 'confirmed', 'preparing', 'delivering', 'delivered', 'cancelled'",
		"CREATE INDEX IF NOT EXISTS idx_orders_user_created",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMenuMigrationSeedsFallbackCategories(t *testing.T) {
	content := readMigration(t, "create_menu")

	for _, slug := range []string{"'mains'", "'snacks'", "'desserts'", "'combos'", "'promos'"} {
		if !strings.Contains(content, slug) {
			t.Errorf("missing seeded category %s", slug)
		}
	}
	if !strings.Contains(content, "ON CONFLICT (slug) DO NOTHING") {
		t.Error("category seed must be re-runnable")
	}
}

func TestUsersMigrationDefinesRoleLookup(t *testing.T) {
	content := readMigration(t, "create_users")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS user_roles",
		"PRIMARY KEY (user_id, role)",
		"CREATE OR REPLACE FUNCTION has_role",
		"CREATE TABLE IF NOT EXISTS profiles",
		"DROP FUNCTION IF EXISTS has_role",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCouponsMigrationStoresUpperCaseCodes(t *testing.T) {
	content := readMigration(t, "create_coupons_and_zones")
	if !strings.Contains(content, "CHECK (code = upper(code))") {
		t.Fatal("coupon codes must be upper case")
	}
	if !strings.Contains(content, "CREATE TABLE IF NOT EXISTS delivery_zones") {
		t.Fatal("delivery zones table missing")
	}
}
