package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file matching %q", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestInventoryMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_inventory_items.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS inventory_items",
		"FOREIGN KEY (menu_item_id) REFERENCES menu_items(id) ON DELETE CASCADE",
		"CHECK (stock_qty >= 0)",
		"CREATE TABLE IF NOT EXISTS inventory_logs",
		"change_type inventory_change_type NOT NULL",
		"DROP TABLE IF EXISTS inventory_items",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrdersMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_orders.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"status order_status NOT NULL DEFAULT 'pending'",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_tx_ref",
		"CREATE TABLE IF NOT EXISTS order_items",
		"CHECK (quantity > 0)",
		"CREATE TABLE IF NOT EXISTS order_events",
		"DROP TABLE IF EXISTS orders",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestPaymentsMigrationEnforcesUniqueness(t *testing.T) {
	content := readMigration(t, "*_create_payments.sql")

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_payments_order_id",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_payments_tx_ref",
		"meta JSONB NOT NULL",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestPayoutsMigrationEnforcesObligationDedup(t *testing.T) {
	content := readMigration(t, "*_create_payouts.sql")

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_payout_items_order_reason",
		"WHERE order_id IS NOT NULL",
		"status payout_item_status NOT NULL DEFAULT 'pending'",
		"DROP TABLE IF EXISTS payout_items",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
