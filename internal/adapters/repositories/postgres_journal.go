package repositories

import (
	"context"
	"database/sql"
	"delivery-dispatch-service/internal/domain"
	"delivery-dispatch-service/internal/platform/obs"
	"delivery-dispatch-service/internal/ports"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Postgres-backed implementation of the Journal port.
type PostgresJournal struct{ DB *sql.DB }

func NewPostgresJournal(db *sql.DB) *PostgresJournal {
	return &PostgresJournal{DB: db}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (j *PostgresJournal) SaveOrder(ctx context.Context, o domain.Order) (err error) {
	defer obs.Time(ctx, "journal.SaveOrder")(&err)

	if j.DB == nil {
		return errors.New("postgres journal: DB is nil")
	}

	q := `
	INSERT INTO orders (
		id, buyer_id, seller_id,
		pickup_address, pickup_lat, pickup_lon,
		dropoff_address, dropoff_lat, dropoff_lon,
		item_count, declared_value_cents,
		fee_buyer_cents, fee_seller_cents, fee_platform_cents,
		delivery_method, seller_shipping_cents, tip_cents, large,
		time_slot, status, route_id, queued_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	ON CONFLICT (id) DO UPDATE
	SET status = EXCLUDED.status,
		route_id = EXCLUDED.route_id,
		queued_at = EXCLUDED.queued_at,
		updated_at = EXCLUDED.updated_at;
	`

	routeID := sql.NullString{String: o.RouteID, Valid: o.RouteID != ""}
	_, err = j.DB.ExecContext(ctx, q,
		o.ID, o.BuyerID, o.SellerID,
		o.Pickup.Address, o.Pickup.Lat, o.Pickup.Lon,
		o.Dropoff.Address, o.Dropoff.Lat, o.Dropoff.Lon,
		o.ItemCount, int64(o.DeclaredValue),
		int64(o.DeliveryFee.Buyer), int64(o.DeliveryFee.Seller), int64(o.DeliveryFee.Platform),
		string(o.DeliveryMethod), int64(o.SellerShippingFee), int64(o.Tip), o.Large,
		string(o.TimeSlot), string(o.Status), routeID, o.QueuedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save order %s: %w", o.ID, err)
	}
	return nil
}

// SaveRoute upserts the route row and all its stops in one transaction.
func (j *PostgresJournal) SaveRoute(ctx context.Context, r domain.Route) (err error) {
	defer obs.Time(ctx, "journal.SaveRoute")(&err)

	if j.DB == nil {
		return errors.New("postgres journal: DB is nil")
	}

	tx, err := j.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save route %s: begin tx: %w", r.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	claimedBy := sql.NullString{String: r.ClaimedBy, Valid: r.ClaimedBy != ""}
	_, err = tx.ExecContext(ctx, `
	INSERT INTO routes (
		id, time_slot, colour, status, claimed_by,
		base_pay_cents, mileage_pay_cents, tips_pool_cents,
		total_distance_meters, estimated_duration_minutes,
		created_at, available_since, claimed_at, completed_at,
		abandon_reason, offered_count
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (id) DO UPDATE
	SET status = EXCLUDED.status,
		claimed_by = EXCLUDED.claimed_by,
		available_since = EXCLUDED.available_since,
		claimed_at = EXCLUDED.claimed_at,
		completed_at = EXCLUDED.completed_at,
		abandon_reason = EXCLUDED.abandon_reason,
		offered_count = EXCLUDED.offered_count;
	`,
		r.ID, string(r.TimeSlot), int(r.Colour), string(r.Status), claimedBy,
		int64(r.Totals.BasePay), int64(r.Totals.MileagePay), int64(r.Totals.TipsPool),
		r.Totals.TotalDistanceMeters, r.Totals.EstimatedDurationMinutes,
		r.CreatedAt, r.AvailableSince, nullTime(r.ClaimedAt), nullTime(r.CompletedAt),
		r.AbandonReason, r.OfferedCount,
	)
	if err != nil {
		return fmt.Errorf("save route %s: upsert route: %w", r.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO route_stops (
		id, route_id, order_id, kind, sequence_index, status,
		address, lat, lon, completed_at, completed_by, fail_reason
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO UPDATE
	SET status = EXCLUDED.status,
		completed_at = EXCLUDED.completed_at,
		completed_by = EXCLUDED.completed_by,
		fail_reason = EXCLUDED.fail_reason;
	`)
	if err != nil {
		return fmt.Errorf("save route %s: prepare stops: %w", r.ID, err)
	}
	defer stmt.Close()

	for _, s := range r.Stops {
		_, err := stmt.ExecContext(ctx,
			s.ID, r.ID, s.OrderID, string(s.Kind), s.SequenceIndex, string(s.Status),
			s.Location.Address, s.Location.Lat, s.Location.Lon,
			nullTime(s.CompletedAt), s.CompletedBy, s.FailReason,
		)
		if err != nil {
			return fmt.Errorf("save route %s: upsert stop %s: %w", r.ID, s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save route %s: commit tx: %w", r.ID, err)
	}
	return nil
}

func (j *PostgresJournal) SaveSession(ctx context.Context, s domain.DriverSession) (err error) {
	defer obs.Time(ctx, "journal.SaveSession")(&err)

	if j.DB == nil {
		return errors.New("postgres journal: DB is nil")
	}

	_, err = j.DB.ExecContext(ctx, `
	INSERT INTO driver_sessions (driver_id, status, time_slot, current_route_id, started_at, last_seen, offline_since)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (driver_id) DO UPDATE
	SET status = EXCLUDED.status,
		time_slot = EXCLUDED.time_slot,
		current_route_id = EXCLUDED.current_route_id,
		started_at = EXCLUDED.started_at,
		last_seen = EXCLUDED.last_seen,
		offline_since = EXCLUDED.offline_since;
	`,
		s.DriverID, string(s.Status), string(s.TimeSlot), s.CurrentRouteID,
		s.StartedAt, s.LastSeen, nullTime(s.OfflineSince),
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", s.DriverID, err)
	}
	return nil
}

func (j *PostgresJournal) SaveEarnings(ctx context.Context, rec domain.EarningsRecord) (err error) {
	defer obs.Time(ctx, "journal.SaveEarnings")(&err)

	if j.DB == nil {
		return errors.New("postgres journal: DB is nil")
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("save earnings %s: marshal: %w", rec.RouteID, err)
	}

	_, err = j.DB.ExecContext(ctx, `
	INSERT INTO earnings_records (route_id, driver_id, net_payout_cents, computed_at, record)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (route_id) DO NOTHING;
	`, rec.RouteID, rec.DriverID, int64(rec.NetPayout), rec.ComputedAt, body)
	if err != nil {
		return fmt.Errorf("save earnings %s: %w", rec.RouteID, err)
	}
	return nil
}

// ClaimRoute is the storage-level compare-and-swap that keeps two engine
// instances from handing the same route to two drivers.
func (j *PostgresJournal) ClaimRoute(ctx context.Context, routeID, driverID string, claimedAt time.Time) (err error) {
	defer obs.Time(ctx, "journal.ClaimRoute")(&err)

	if j.DB == nil {
		return errors.New("postgres journal: DB is nil")
	}

	res, err := j.DB.ExecContext(ctx, `
	UPDATE routes
	SET status = $3, claimed_by = $2, claimed_at = $4
	WHERE id = $1 AND status = $5;
	`, routeID, driverID, string(domain.RouteActive), claimedAt, string(domain.RouteAvailable))
	if err != nil {
		return fmt.Errorf("claim route %s: %w", routeID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim route %s: rows affected: %w", routeID, err)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := j.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM routes WHERE id = $1);`, routeID).Scan(&exists); err != nil {
		return fmt.Errorf("claim route %s: check existence: %w", routeID, err)
	}
	if !exists {
		return fmt.Errorf("claim route %s: %w", routeID, domain.ErrRouteNotFound)
	}
	return fmt.Errorf("claim route %s: %w", routeID, domain.ErrRouteAlreadyClaimed)
}

// Load reads the full journal. Stops are attached to their routes in
// sequence order.
func (j *PostgresJournal) Load(ctx context.Context) (_ ports.Snapshot, err error) {
	defer obs.Time(ctx, "journal.Load")(&err)

	if j.DB == nil {
		return ports.Snapshot{}, errors.New("postgres journal: DB is nil")
	}

	var snap ports.Snapshot

	if snap.Orders, err = j.loadOrders(ctx); err != nil {
		return ports.Snapshot{}, err
	}
	if snap.Routes, err = j.loadRoutes(ctx); err != nil {
		return ports.Snapshot{}, err
	}
	if snap.Sessions, err = j.loadSessions(ctx); err != nil {
		return ports.Snapshot{}, err
	}
	if snap.Earnings, err = j.loadEarnings(ctx); err != nil {
		return ports.Snapshot{}, err
	}

	return snap, nil
}

func (j *PostgresJournal) loadOrders(ctx context.Context) ([]domain.Order, error) {
	rows, err := j.DB.QueryContext(ctx, `
	SELECT
		id, buyer_id, seller_id,
		pickup_address, pickup_lat, pickup_lon,
		dropoff_address, dropoff_lat, dropoff_lon,
		item_count, declared_value_cents,
		fee_buyer_cents, fee_seller_cents, fee_platform_cents,
		delivery_method, seller_shipping_cents, tip_cents, large,
		time_slot, status, route_id, queued_at, updated_at
	FROM orders
	ORDER BY queued_at, id;
	`)
	if err != nil {
		return nil, fmt.Errorf("load orders: query orders table: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 64)
	for rows.Next() {
		var (
			o                          domain.Order
			declared, feeB, feeS, feeP int64
			shipping, tip              int64
			method, slot, status       string
			routeID                    sql.NullString
		)
		err := rows.Scan(
			&o.ID, &o.BuyerID, &o.SellerID,
			&o.Pickup.Address, &o.Pickup.Lat, &o.Pickup.Lon,
			&o.Dropoff.Address, &o.Dropoff.Lat, &o.Dropoff.Lon,
			&o.ItemCount, &declared,
			&feeB, &feeS, &feeP,
			&method, &shipping, &tip, &o.Large,
			&slot, &status, &routeID, &o.QueuedAt, &o.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("load orders: scan row: %w", err)
		}
		o.DeclaredValue = domain.Cents(declared)
		o.DeliveryFee = domain.FeeSplit{Buyer: domain.Cents(feeB), Seller: domain.Cents(feeS), Platform: domain.Cents(feeP)}
		o.DeliveryMethod = domain.DeliveryMethod(method)
		o.SellerShippingFee = domain.Cents(shipping)
		o.Tip = domain.Cents(tip)
		o.TimeSlot = domain.TimeSlot(slot)
		o.Status = domain.OrderStatus(status)
		o.RouteID = routeID.String
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load orders: row iteration: %w", err)
	}
	return orders, nil
}

func (j *PostgresJournal) loadRoutes(ctx context.Context) ([]domain.Route, error) {
	rows, err := j.DB.QueryContext(ctx, `
	SELECT
		id, time_slot, colour, status, claimed_by,
		base_pay_cents, mileage_pay_cents, tips_pool_cents,
		total_distance_meters, estimated_duration_minutes,
		created_at, available_since, claimed_at, completed_at,
		abandon_reason, offered_count
	FROM routes
	ORDER BY created_at, id;
	`)
	if err != nil {
		return nil, fmt.Errorf("load routes: query routes table: %w", err)
	}
	defer rows.Close()

	routes := make([]domain.Route, 0, 16)
	index := make(map[string]int)
	for rows.Next() {
		var (
			r                    domain.Route
			slot, status         string
			colour               int
			claimedBy            sql.NullString
			base, mileage, tips  int64
			claimedAt, completed sql.NullTime
		)
		err := rows.Scan(
			&r.ID, &slot, &colour, &status, &claimedBy,
			&base, &mileage, &tips,
			&r.Totals.TotalDistanceMeters, &r.Totals.EstimatedDurationMinutes,
			&r.CreatedAt, &r.AvailableSince, &claimedAt, &completed,
			&r.AbandonReason, &r.OfferedCount,
		)
		if err != nil {
			return nil, fmt.Errorf("load routes: scan row: %w", err)
		}
		r.TimeSlot = domain.TimeSlot(slot)
		r.Colour = domain.Colour(colour)
		r.Status = domain.RouteStatus(status)
		r.ClaimedBy = claimedBy.String
		r.Totals.BasePay = domain.Cents(base)
		r.Totals.MileagePay = domain.Cents(mileage)
		r.Totals.TipsPool = domain.Cents(tips)
		r.ClaimedAt = timePtr(claimedAt)
		r.CompletedAt = timePtr(completed)
		index[r.ID] = len(routes)
		routes = append(routes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load routes: row iteration: %w", err)
	}

	stopRows, err := j.DB.QueryContext(ctx, `
	SELECT
		id, route_id, order_id, kind, sequence_index, status,
		address, lat, lon, completed_at, completed_by, fail_reason
	FROM route_stops
	ORDER BY route_id, sequence_index;
	`)
	if err != nil {
		return nil, fmt.Errorf("load routes: query route_stops table: %w", err)
	}
	defer stopRows.Close()

	for stopRows.Next() {
		var (
			s            domain.Stop
			kind, status string
			completedAt  sql.NullTime
		)
		err := stopRows.Scan(
			&s.ID, &s.RouteID, &s.OrderID, &kind, &s.SequenceIndex, &status,
			&s.Location.Address, &s.Location.Lat, &s.Location.Lon,
			&completedAt, &s.CompletedBy, &s.FailReason,
		)
		if err != nil {
			return nil, fmt.Errorf("load routes: scan stop: %w", err)
		}
		s.Kind = domain.StopKind(kind)
		s.Status = domain.StopStatus(status)
		s.CompletedAt = timePtr(completedAt)

		i, ok := index[s.RouteID]
		if !ok {
			return nil, fmt.Errorf("load routes: stop %s references unknown route %s", s.ID, s.RouteID)
		}
		routes[i].Stops = append(routes[i].Stops, s)
	}
	if err := stopRows.Err(); err != nil {
		return nil, fmt.Errorf("load routes: stop iteration: %w", err)
	}

	return routes, nil
}

func (j *PostgresJournal) loadSessions(ctx context.Context) ([]domain.DriverSession, error) {
	rows, err := j.DB.QueryContext(ctx, `
	SELECT driver_id, status, time_slot, current_route_id, started_at, last_seen, offline_since
	FROM driver_sessions
	ORDER BY driver_id;
	`)
	if err != nil {
		return nil, fmt.Errorf("load sessions: query driver_sessions table: %w", err)
	}
	defer rows.Close()

	sessions := make([]domain.DriverSession, 0, 16)
	for rows.Next() {
		var (
			s            domain.DriverSession
			status, slot string
			offline      sql.NullTime
		)
		if err := rows.Scan(&s.DriverID, &status, &slot, &s.CurrentRouteID, &s.StartedAt, &s.LastSeen, &offline); err != nil {
			return nil, fmt.Errorf("load sessions: scan row: %w", err)
		}
		s.Status = domain.OnlineStatus(status)
		s.TimeSlot = domain.TimeSlot(slot)
		s.OfflineSince = timePtr(offline)
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load sessions: row iteration: %w", err)
	}
	return sessions, nil
}

func (j *PostgresJournal) loadEarnings(ctx context.Context) ([]domain.EarningsRecord, error) {
	rows, err := j.DB.QueryContext(ctx, `SELECT record FROM earnings_records ORDER BY computed_at, route_id;`)
	if err != nil {
		return nil, fmt.Errorf("load earnings: query earnings_records table: %w", err)
	}
	defer rows.Close()

	records := make([]domain.EarningsRecord, 0, 16)
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("load earnings: scan row: %w", err)
		}
		var rec domain.EarningsRecord
		if err := json.Unmarshal(body, &rec); err != nil {
			return nil, fmt.Errorf("load earnings: decode record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load earnings: row iteration: %w", err)
	}
	return records, nil
}
