package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
)

const serviceOrderColumns = `
	id, title, description, client, priority, status, category, technician,
	due_date, estimated_hours, notes, version, created_at, updated_at`

type serviceOrderRepository struct {
	db *sql.DB
}

// NewServiceOrderRepository создаёт PostgreSQL-реализацию ServiceOrderRepository.
func NewServiceOrderRepository(store *Store) domain.ServiceOrderRepository {
	return &serviceOrderRepository{db: store.DB()}
}

func (r *serviceOrderRepository) Create(ctx context.Context, order domain.ServiceOrder) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO service_orders (`+serviceOrderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		order.ID, order.Title, order.Description, order.Client,
		string(order.Priority), string(order.Status), order.Category, order.Technician,
		nullTime(order.DueDate), nullInt(order.EstimatedHours), order.Notes,
		order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderVersionConflict
		}
		return fmt.Errorf("insert service order: %w", err)
	}
	return nil
}

func (r *serviceOrderRepository) Get(ctx context.Context, id string) (domain.ServiceOrder, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := scanServiceOrder(conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT `+serviceOrderColumns+`
		FROM service_orders
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ServiceOrder{}, domain.ErrOrderNotFound
		}
		return domain.ServiceOrder{}, fmt.Errorf("select service order: %w", err)
	}
	return order, nil
}

func (r *serviceOrderRepository) List(ctx context.Context) ([]domain.ServiceOrder, error) {
	return r.query(ctx, "list service orders", `
		SELECT `+serviceOrderColumns+`
		FROM service_orders
		ORDER BY created_at ASC, seq ASC
	`)
}

func (r *serviceOrderRepository) ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.ServiceOrder, error) {
	return r.query(ctx, "list service orders by status", `
		SELECT `+serviceOrderColumns+`
		FROM service_orders
		WHERE status = $1
		ORDER BY created_at ASC, seq ASC
	`, string(status))
}

// Search использует position(), чтобы % и _ в запросе трактовались буквально.
func (r *serviceOrderRepository) Search(ctx context.Context, query string) ([]domain.ServiceOrder, error) {
	return r.query(ctx, "search service orders", `
		SELECT `+serviceOrderColumns+`
		FROM service_orders
		WHERE $1::text = ''
		   OR position(lower($1) in lower(title)) > 0
		   OR position(lower($1) in lower(client)) > 0
		   OR position(lower($1) in lower(description)) > 0
		ORDER BY created_at ASC, seq ASC
	`, query)
}

func (r *serviceOrderRepository) Save(ctx context.Context, order domain.ServiceOrder) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE service_orders
			SET title = $1,
			    description = $2,
			    client = $3,
			    priority = $4,
			    status = $5,
			    category = $6,
			    technician = $7,
			    due_date = $8,
			    estimated_hours = $9,
			    notes = $10,
			    updated_at = $11,
			    version = version + 1
			WHERE id = $12
			  AND version = $13
		`,
			order.Title, order.Description, order.Client,
			string(order.Priority), string(order.Status), order.Category, order.Technician,
			nullTime(order.DueDate), nullInt(order.EstimatedHours), order.Notes,
			order.UpdatedAt, order.ID, order.Version,
		)
		if err != nil {
			return fmt.Errorf("update service order: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected > 0 {
			return nil
		}

		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM service_orders WHERE id = $1)`, order.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check service order exists: %w", err)
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrOrderVersionConflict
	})
}

func (r *serviceOrderRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM service_orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete service order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *serviceOrderRepository) query(ctx context.Context, op, query string, args ...any) ([]domain.ServiceOrder, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	orders := make([]domain.ServiceOrder, 0)
	for rows.Next() {
		order, err := scanServiceOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate service order rows: %w", err)
	}
	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanServiceOrder(row rowScanner) (domain.ServiceOrder, error) {
	var (
		order    domain.ServiceOrder
		priority string
		status   string
		due      sql.NullTime
		hours    sql.NullInt64
	)
	if err := row.Scan(
		&order.ID, &order.Title, &order.Description, &order.Client,
		&priority, &status, &order.Category, &order.Technician,
		&due, &hours, &order.Notes, &order.Version, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.ServiceOrder{}, err
	}

	order.Priority = domain.Priority(priority)
	order.Status = domain.OrderStatus(status)
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	if due.Valid {
		t := due.Time.UTC()
		order.DueDate = &t
	}
	if hours.Valid {
		h := int(hours.Int64)
		order.EstimatedHours = &h
	}
	return order, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

var (
	_ domain.ServiceOrderRepository = (*serviceOrderRepository)(nil)
	_ domain.Transactor             = (*Store)(nil)
)
