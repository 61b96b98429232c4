package legacyimport

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func legacyFixture() Snapshot {
	soldAt := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	return Snapshot{
		Users: []LegacyUser{
			{ID: 1, NationalID: "70000001", FirstName: "Vlady", Email: "Admin@Vlady.pe", PasswordHash: "$2a$10$x", Role: "admin"},
			{ID: 2, NationalID: "70000002", FirstName: "Ana", Email: "ana@vlady.pe", PasswordHash: "$2a$10$y"},
			{ID: 3, NationalID: "70000003", FirstName: "Copia", Email: "ANA@vlady.pe", PasswordHash: "$2a$10$z"},
		},
		Clients: []LegacyClient{
			{ID: 10, NationalID: "87654321", Name: " Rosa "},
			{ID: 11, NationalID: "87654321", Name: "Rosa bis"},
		},
		Products: []LegacyProduct{
			{ID: 100, Name: "Pan francés", Price: dec("0.50"), InitialStock: 100, CurrentStock: 80, Status: "activo"},
			{ID: 101, Name: "Keke", Price: dec("12.00"), InitialStock: 5, CurrentStock: 0, Status: "inactivo"},
			{ID: 102, Name: "Roto", Price: dec("-1"), InitialStock: 1, CurrentStock: 1, Status: "activo"},
		},
		Sales: []LegacySale{
			{ID: 500, UserID: 2, ClientID: 10, SoldAt: soldAt, Total: dec("10.00"), PaymentMethod: "efectivo"},
			{ID: 501, UserID: 1, ClientID: 10, SoldAt: soldAt, Total: dec("12.00"), PaymentMethod: "Tarjeta"},
			{ID: 502, UserID: 1, ClientID: 10, SoldAt: soldAt, Total: dec("3.00"), PaymentMethod: "bitcoin"},
			{ID: 503, UserID: 3, ClientID: 10, SoldAt: soldAt, Total: dec("3.00"), PaymentMethod: "yape"},
			{ID: 504, UserID: 1, ClientID: 11, SoldAt: soldAt, Total: dec("3.00"), PaymentMethod: "plin"},
		},
		SaleItems: []LegacySaleItem{
			{SaleID: 500, ProductID: 100, Quantity: 20, UnitPrice: dec("0.50"), Subtotal: dec("10.00")},
			{SaleID: 501, ProductID: 101, Quantity: 1, UnitPrice: dec("12.00"), Subtotal: dec("12.00")},
			{SaleID: 501, ProductID: 102, Quantity: 1, UnitPrice: dec("1.00"), Subtotal: dec("1.00")},
		},
		Deletions: []LegacyDeletion{
			{ProductID: 101, Name: "Keke", Price: dec("12.00"), DeletedBy: sql.NullInt64{Int64: 1, Valid: true}},
			{ProductID: 100, Name: "Pan francés", Price: dec("0.50")},
		},
	}
}

func TestConvertKeepsValidRows(t *testing.T) {
	batch, skipped := Convert(legacyFixture())

	require.Len(t, batch.Users, 2)
	require.Equal(t, "admin@vlady.pe", batch.Users[0].Email)
	require.Equal(t, "admin", batch.Users[0].Role)
	require.Equal(t, "vendedor", batch.Users[1].Role)

	require.Len(t, batch.Clients, 1)
	require.Equal(t, "Rosa", batch.Clients[0].Name)

	require.Len(t, batch.Products, 2)
	require.Equal(t, "active", batch.Products[0].Status)
	require.Equal(t, "inactive", batch.Products[1].Status)

	require.Len(t, batch.Sales, 2)
	require.Equal(t, "cash", batch.Sales[0].PaymentMethod)
	require.Len(t, batch.Sales[0].Items, 1)
	require.Equal(t, "card", batch.Sales[1].PaymentMethod)
	require.Len(t, batch.Sales[1].Items, 1, "line for the rejected product is dropped")

	require.Len(t, batch.Deletions, 1)
	require.Equal(t, defaultDeletionReason, batch.Deletions[0].Reason)

	reasons := map[string]string{}
	for _, s := range skipped {
		reasons[s.Table+"/"+s.Key] = s.Reason
	}
	require.Equal(t, "duplicate email", reasons["usuario/3"])
	require.Equal(t, "missing or duplicate national id", reasons["cliente/11"])
	require.Equal(t, "negative price or stock", reasons["producto/102"])
	require.Contains(t, reasons["venta/502"], "bitcoin")
	require.Equal(t, "unknown user", reasons["venta/503"])
	require.Equal(t, "unknown client", reasons["venta/504"])
	require.Equal(t, "unknown product", reasons["detalle_venta/501/102"])
	require.Equal(t, "unknown product or user", reasons["productos_eliminados_log/100"])
}

func TestPaymentMethodMapping(t *testing.T) {
	cases := map[string]string{"efectivo": "cash", " TARJETA ": "card", "yape": "yape", "plin": "plin", "cash": "cash"}
	for in, want := range cases {
		got, ok := PaymentMethod(in)
		require.True(t, ok, in)
		require.Equal(t, want, got, in)
	}
	_, ok := PaymentMethod("cheque")
	require.False(t, ok)
}

func TestRoleAndStatusMapping(t *testing.T) {
	require.Equal(t, "admin", Role("Administrador"))
	require.Equal(t, "vendedor", Role(""))
	require.Equal(t, "active", Status("ACTIVO"))
	require.Equal(t, "inactive", Status("eliminado"))
}

func TestConvertEmptySnapshot(t *testing.T) {
	batch, skipped := Convert(Snapshot{})
	require.Empty(t, batch.Users)
	require.Empty(t, batch.Sales)
	require.Empty(t, skipped)
}
