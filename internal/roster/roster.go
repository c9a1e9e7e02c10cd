package roster

import (
	"context"
	"database/sql"
	"fmt"
)

// Student is a hostel resident as recorded by the roster service.
type Student struct {
	ID         string  `json:"id"`
	RollNumber string  `json:"roll_number"`
	Name       string  `json:"name"`
	RoomNumber *string `json:"room_number,omitempty"`
	Active     bool    `json:"active"`
}

// Room is a hostel room with its current occupants.
type Room struct {
	RoomNumber string    `json:"room_number"`
	Floor      int       `json:"floor"`
	Capacity   int       `json:"capacity"`
	Occupants  []Student `json:"occupants"`
}

// FloorInfo summarises one floor for the guard dashboard.
type FloorInfo struct {
	Floor          int `json:"floor"`
	RoomCount      int `json:"room_count"`
	TotalCapacity  int `json:"total_capacity"`
	TotalOccupants int `json:"total_occupants"`
}

// Repository reads student and room data. The roster is owned by another
// service; nothing here writes.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ActiveStudents returns every active student with a room assignment.
func (r *Repository) ActiveStudents(ctx context.Context) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, roll_number, name, room_number, active
		FROM students
		WHERE active = TRUE AND room_number IS NOT NULL
		ORDER BY roll_number
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.RollNumber, &s.Name, &s.RoomNumber, &s.Active); err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

// RoomsByFloor returns the rooms on a floor with occupants attached,
// ordered by room number.
func (r *Repository) RoomsByFloor(ctx context.Context, floor int) ([]Room, error) {
	return r.Rooms(ctx, []int{floor})
}

// Rooms returns rooms with occupants, optionally restricted to the given
// floors (nil or empty means all), ordered by floor then room number.
func (r *Repository) Rooms(ctx context.Context, floors []int) ([]Room, error) {
	query := `SELECT room_number, floor, capacity FROM rooms`
	args := []any{}
	if len(floors) > 0 {
		query += ` WHERE floor = ANY($1)`
		args = append(args, intArray(floors))
	}
	query += ` ORDER BY floor, room_number`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []Room
	index := map[string]int{}
	for rows.Next() {
		var rm Room
		if err := rows.Scan(&rm.RoomNumber, &rm.Floor, &rm.Capacity); err != nil {
			return nil, err
		}
		index[rm.RoomNumber] = len(rooms)
		rooms = append(rooms, rm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return rooms, nil
	}

	occRows, err := r.db.QueryContext(ctx, `
		SELECT id, roll_number, name, room_number, active
		FROM students
		WHERE active = TRUE AND room_number IS NOT NULL
		ORDER BY roll_number
	`)
	if err != nil {
		return nil, err
	}
	defer occRows.Close()

	for occRows.Next() {
		var s Student
		if err := occRows.Scan(&s.ID, &s.RollNumber, &s.Name, &s.RoomNumber, &s.Active); err != nil {
			return nil, err
		}
		if i, ok := index[*s.RoomNumber]; ok {
			rooms[i].Occupants = append(rooms[i].Occupants, s)
		}
	}
	return rooms, occRows.Err()
}

// Floors lists every floor with room and occupancy counts.
func (r *Repository) Floors(ctx context.Context) ([]FloorInfo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT rm.floor,
		       COUNT(DISTINCT rm.room_number),
		       COALESCE(SUM(rm.capacity), 0),
		       COUNT(s.id)
		FROM rooms rm
		LEFT JOIN students s ON s.room_number = rm.room_number AND s.active = TRUE
		GROUP BY rm.floor
		ORDER BY rm.floor
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var floors []FloorInfo
	for rows.Next() {
		var f FloorInfo
		if err := rows.Scan(&f.Floor, &f.RoomCount, &f.TotalCapacity, &f.TotalOccupants); err != nil {
			return nil, err
		}
		floors = append(floors, f)
	}
	return floors, rows.Err()
}

// CountActiveStudents counts active students, optionally scoped to floors
// (nil or empty means all).
func (r *Repository) CountActiveStudents(ctx context.Context, floors []int) (int, error) {
	var n int
	var err error
	if len(floors) > 0 {
		err = r.db.QueryRowContext(ctx, `
			SELECT COUNT(s.id)
			FROM students s
			JOIN rooms rm ON rm.room_number = s.room_number
			WHERE s.active = TRUE AND rm.floor = ANY($1)
		`, intArray(floors)).Scan(&n)
	} else {
		err = r.db.QueryRowContext(ctx, `
			SELECT COUNT(id) FROM students WHERE active = TRUE
		`).Scan(&n)
	}
	return n, err
}

// CountRooms counts rooms, optionally scoped to floors.
func (r *Repository) CountRooms(ctx context.Context, floors []int) (int, error) {
	var n int
	var err error
	if len(floors) > 0 {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(room_number) FROM rooms WHERE floor = ANY($1)`, intArray(floors)).Scan(&n)
	} else {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(room_number) FROM rooms`).Scan(&n)
	}
	return n, err
}

// StudentsPerFloor returns active student counts keyed by floor.
func (r *Repository) StudentsPerFloor(ctx context.Context) (map[int]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT rm.floor, COUNT(s.id)
		FROM rooms rm
		LEFT JOIN students s ON s.room_number = rm.room_number AND s.active = TRUE
		GROUP BY rm.floor
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := map[int]int{}
	for rows.Next() {
		var floor, count int
		if err := rows.Scan(&floor, &count); err != nil {
			return nil, err
		}
		totals[floor] = count
	}
	return totals, rows.Err()
}

// intArray renders a Postgres int array literal for ANY($n) parameters.
func intArray(vals []int) string {
	s := "{"
	for i, v := range vals {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%d", v)
	}
	return s + "}"
}
