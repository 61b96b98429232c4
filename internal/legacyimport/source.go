// Package legacyimport copies the data of the previous MySQL deployment
// into the PostgreSQL schema.
package legacyimport

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

const errNoSuchTable = 1146

// LegacyUser mirrors a row of usuario.
type LegacyUser struct {
	ID           int64
	NationalID   string
	FirstName    string
	LastName     string
	Phone        string
	Email        string
	PasswordHash string
	Role         string
}

// LegacyClient mirrors a row of cliente.
type LegacyClient struct {
	ID         int64
	NationalID string
	Name       string
}

// LegacyProduct mirrors a row of producto.
type LegacyProduct struct {
	ID           int64
	Name         string
	Description  string
	Price        decimal.Decimal
	InitialStock int
	CurrentStock int
	Status       string
}

// LegacySale mirrors a row of venta.
type LegacySale struct {
	ID            int64
	UserID        int64
	ClientID      int64
	SoldAt        time.Time
	Total         decimal.Decimal
	PaymentMethod string
}

// LegacySaleItem mirrors a row of detalle_venta.
type LegacySaleItem struct {
	SaleID    int64
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// LegacyDeletion mirrors a row of productos_eliminados_log.
type LegacyDeletion struct {
	ProductID    int64
	Name         string
	Description  string
	Price        decimal.Decimal
	CurrentStock int
	DeletedBy    sql.NullInt64
	Reason       string
}

// Snapshot is everything read from the legacy database.
type Snapshot struct {
	Users     []LegacyUser
	Clients   []LegacyClient
	Products  []LegacyProduct
	Sales     []LegacySale
	SaleItems []LegacySaleItem
	Deletions []LegacyDeletion
}

// Source loads a consistent snapshot of the legacy data.
type Source interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// MySQLSource reads the legacy vladydb schema.
type MySQLSource struct {
	db *sql.DB
}

// OpenMySQL connects to the legacy database. Datetimes are read in loc,
// the zone the legacy application wrote them in.
func OpenMySQL(dsn string, loc *time.Location) (*MySQLSource, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse legacy dsn: %w", err)
	}
	cfg.ParseTime = true
	if loc != nil {
		cfg.Loc = loc
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return &MySQLSource{db: sql.OpenDB(connector)}, nil
}

// Close releases the connection pool.
func (s *MySQLSource) Close() error {
	return s.db.Close()
}

// Snapshot reads every table inside one read-only REPEATABLE READ
// transaction so the rows are mutually consistent.
func (s *MySQLSource) Snapshot(ctx context.Context) (Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return Snapshot{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var snap Snapshot
	steps := []struct {
		name string
		fn   func(context.Context, *sql.Tx, *Snapshot) error
	}{
		{"usuario", readUsers},
		{"cliente", readClients},
		{"producto", readProducts},
		{"venta", readSales},
		{"detalle_venta", readSaleItems},
		{"productos_eliminados_log", readDeletions},
	}
	for _, step := range steps {
		if err := step.fn(ctx, tx, &snap); err != nil {
			return Snapshot{}, fmt.Errorf("read %s: %w", step.name, err)
		}
	}
	return snap, nil
}

func readUsers(ctx context.Context, tx *sql.Tx, snap *Snapshot) error {
	rows, err := tx.QueryContext(ctx, `SELECT id_usuario, dni, nombre, COALESCE(apellido, ''), COALESCE(telefono, ''),
correo, contra, COALESCE(rol, '') FROM usuario ORDER BY id_usuario`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var u LegacyUser
		if err := rows.Scan(&u.ID, &u.NationalID, &u.FirstName, &u.LastName, &u.Phone, &u.Email, &u.PasswordHash, &u.Role); err != nil {
			return err
		}
		snap.Users = append(snap.Users, u)
	}
	return rows.Err()
}

func readClients(ctx context.Context, tx *sql.Tx, snap *Snapshot) error {
	rows, err := tx.QueryContext(ctx, `SELECT id_cliente, DNI, nombre FROM cliente ORDER BY id_cliente`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var c LegacyClient
		if err := rows.Scan(&c.ID, &c.NationalID, &c.Name); err != nil {
			return err
		}
		snap.Clients = append(snap.Clients, c)
	}
	return rows.Err()
}

func readProducts(ctx context.Context, tx *sql.Tx, snap *Snapshot) error {
	rows, err := tx.QueryContext(ctx, `SELECT id_prod, nombre, COALESCE(descripcion, ''), precio,
COALESCE(stock_inicial, stock_actual), stock_actual, estado FROM producto ORDER BY id_prod`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var p LegacyProduct
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.InitialStock, &p.CurrentStock, &p.Status); err != nil {
			return err
		}
		snap.Products = append(snap.Products, p)
	}
	return rows.Err()
}

func readSales(ctx context.Context, tx *sql.Tx, snap *Snapshot) error {
	rows, err := tx.QueryContext(ctx, `SELECT id_venta, id_usuario, id_cliente, fecha, total, metodo_pago
FROM venta ORDER BY id_venta`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var v LegacySale
		if err := rows.Scan(&v.ID, &v.UserID, &v.ClientID, &v.SoldAt, &v.Total, &v.PaymentMethod); err != nil {
			return err
		}
		snap.Sales = append(snap.Sales, v)
	}
	return rows.Err()
}

func readSaleItems(ctx context.Context, tx *sql.Tx, snap *Snapshot) error {
	rows, err := tx.QueryContext(ctx, `SELECT id_venta, id_prod, cantidad, precio_unidad, subTotal
FROM detalle_venta ORDER BY id_venta, id_prod`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it LegacySaleItem
		if err := rows.Scan(&it.SaleID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			return err
		}
		snap.SaleItems = append(snap.SaleItems, it)
	}
	return rows.Err()
}

// readDeletions tolerates installations that never created the log table.
func readDeletions(ctx context.Context, tx *sql.Tx, snap *Snapshot) error {
	rows, err := tx.QueryContext(ctx, `SELECT id_prod_original, nombre_original, COALESCE(descripcion_original, ''),
precio_original, stock_actual_original, eliminado_por_usuario_id, COALESCE(razon_eliminacion, '')
FROM productos_eliminados_log`)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == errNoSuchTable {
			return nil
		}
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var d LegacyDeletion
		if err := rows.Scan(&d.ProductID, &d.Name, &d.Description, &d.Price, &d.CurrentStock, &d.DeletedBy, &d.Reason); err != nil {
			return err
		}
		snap.Deletions = append(snap.Deletions, d)
	}
	return rows.Err()
}
