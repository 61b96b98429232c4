package legacyimport

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const defaultDeletionReason = "Sin especificar"

// Skipped names a legacy row that was not imported.
type Skipped struct {
	Table  string
	Key    string
	Reason string
}

func (s Skipped) String() string {
	return fmt.Sprintf("%s[%s]: %s", s.Table, s.Key, s.Reason)
}

// User is a row ready for the users table.
type User struct {
	ID           int64
	NationalID   string
	FirstName    string
	LastName     string
	Phone        string
	Email        string
	PasswordHash string
	Role         string
}

// Client is a row ready for the clients table.
type Client struct {
	ID         int64
	NationalID string
	Name       string
}

// Product is a row ready for the products table.
type Product struct {
	ID           int64
	Name         string
	Description  string
	Price        decimal.Decimal
	InitialStock int
	CurrentStock int
	Status       string
}

// Sale is a row ready for the sales table with its lines.
type Sale struct {
	ID            int64
	UserID        int64
	ClientID      int64
	SoldAt        time.Time
	Total         decimal.Decimal
	PaymentMethod string
	Items         []SaleItem
}

// SaleItem is a row ready for sale_items.
type SaleItem struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// Deletion is a row ready for product_deletion_log.
type Deletion struct {
	ProductID    int64
	Name         string
	Description  string
	Price        decimal.Decimal
	CurrentStock int
	DeletedBy    int64
	Reason       string
}

// Batch is the converted data set.
type Batch struct {
	Users     []User
	Clients   []Client
	Products  []Product
	Sales     []Sale
	Deletions []Deletion
}

// PaymentMethod maps a legacy metodo_pago value to the current code.
func PaymentMethod(legacy string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(legacy)) {
	case "efectivo", "cash":
		return "cash", true
	case "tarjeta", "card":
		return "card", true
	case "yape":
		return "yape", true
	case "plin":
		return "plin", true
	}
	return "", false
}

// Role maps a legacy rol value. Anything that is not an administrator
// becomes a seller.
func Role(legacy string) string {
	switch strings.ToLower(strings.TrimSpace(legacy)) {
	case "admin", "administrador":
		return "admin"
	}
	return "vendedor"
}

// Status maps a legacy estado value.
func Status(legacy string) string {
	if strings.EqualFold(strings.TrimSpace(legacy), "activo") {
		return "active"
	}
	return "inactive"
}

// Convert turns a legacy snapshot into rows for the current schema. Rows
// that would break a constraint are reported instead of imported, along
// with anything that depends on them.
func Convert(snap Snapshot) (Batch, []Skipped) {
	var (
		batch   Batch
		skipped []Skipped
	)
	skip := func(table string, key any, reason string) {
		skipped = append(skipped, Skipped{Table: table, Key: fmt.Sprint(key), Reason: reason})
	}

	users := make(map[int64]bool, len(snap.Users))
	emails := make(map[string]bool, len(snap.Users))
	userNIDs := make(map[string]bool, len(snap.Users))
	for _, u := range snap.Users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		nid := strings.TrimSpace(u.NationalID)
		switch {
		case email == "" || u.PasswordHash == "":
			skip("usuario", u.ID, "missing email or password")
			continue
		case emails[email]:
			skip("usuario", u.ID, "duplicate email")
			continue
		case userNIDs[nid]:
			skip("usuario", u.ID, "duplicate national id")
			continue
		}
		emails[email], userNIDs[nid], users[u.ID] = true, true, true
		batch.Users = append(batch.Users, User{
			ID:           u.ID,
			NationalID:   nid,
			FirstName:    strings.TrimSpace(u.FirstName),
			LastName:     strings.TrimSpace(u.LastName),
			Phone:        strings.TrimSpace(u.Phone),
			Email:        email,
			PasswordHash: u.PasswordHash,
			Role:         Role(u.Role),
		})
	}

	clients := make(map[int64]bool, len(snap.Clients))
	clientNIDs := make(map[string]bool, len(snap.Clients))
	for _, c := range snap.Clients {
		nid := strings.TrimSpace(c.NationalID)
		if nid == "" || clientNIDs[nid] {
			skip("cliente", c.ID, "missing or duplicate national id")
			continue
		}
		clientNIDs[nid], clients[c.ID] = true, true
		batch.Clients = append(batch.Clients, Client{ID: c.ID, NationalID: nid, Name: strings.TrimSpace(c.Name)})
	}

	products := make(map[int64]bool, len(snap.Products))
	for _, p := range snap.Products {
		if p.Price.IsNegative() || p.CurrentStock < 0 || p.InitialStock < 0 {
			skip("producto", p.ID, "negative price or stock")
			continue
		}
		products[p.ID] = true
		batch.Products = append(batch.Products, Product{
			ID:           p.ID,
			Name:         strings.TrimSpace(p.Name),
			Description:  p.Description,
			Price:        p.Price.Round(2),
			InitialStock: p.InitialStock,
			CurrentStock: p.CurrentStock,
			Status:       Status(p.Status),
		})
	}

	items := make(map[int64][]SaleItem)
	for _, it := range snap.SaleItems {
		key := fmt.Sprintf("%d/%d", it.SaleID, it.ProductID)
		switch {
		case !products[it.ProductID]:
			skip("detalle_venta", key, "unknown product")
			continue
		case it.Quantity <= 0 || it.UnitPrice.IsNegative() || it.Subtotal.IsNegative():
			skip("detalle_venta", key, "non-positive quantity or negative amount")
			continue
		}
		items[it.SaleID] = append(items[it.SaleID], SaleItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.Round(2),
			Subtotal:  it.Subtotal.Round(2),
		})
	}

	for _, v := range snap.Sales {
		method, ok := PaymentMethod(v.PaymentMethod)
		switch {
		case !ok:
			skip("venta", v.ID, fmt.Sprintf("unknown payment method %q", v.PaymentMethod))
			continue
		case !users[v.UserID]:
			skip("venta", v.ID, "unknown user")
			continue
		case !clients[v.ClientID]:
			skip("venta", v.ID, "unknown client")
			continue
		case v.Total.IsNegative():
			skip("venta", v.ID, "negative total")
			continue
		}
		batch.Sales = append(batch.Sales, Sale{
			ID:            v.ID,
			UserID:        v.UserID,
			ClientID:      v.ClientID,
			SoldAt:        v.SoldAt,
			Total:         v.Total.Round(2),
			PaymentMethod: method,
			Items:         items[v.ID],
		})
	}

	for _, d := range snap.Deletions {
		if !products[d.ProductID] || !d.DeletedBy.Valid || !users[d.DeletedBy.Int64] {
			skip("productos_eliminados_log", d.ProductID, "unknown product or user")
			continue
		}
		reason := strings.TrimSpace(d.Reason)
		if reason == "" {
			reason = defaultDeletionReason
		}
		batch.Deletions = append(batch.Deletions, Deletion{
			ProductID:    d.ProductID,
			Name:         d.Name,
			Description:  d.Description,
			Price:        d.Price.Round(2),
			CurrentStock: d.CurrentStock,
			DeletedBy:    d.DeletedBy.Int64,
			Reason:       reason,
		})
	}
	return batch, skipped
}
