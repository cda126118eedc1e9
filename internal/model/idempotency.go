package model

import "time"

// IdempotencyRecord pins a caller-supplied key within a scope (e.g.
// "order_create") to the reference of the result it produced. Written once,
// in the same transaction as the operation it guards.
type IdempotencyRecord struct {
	Key             string    `db:"key"`
	Scope           string    `db:"scope"`
	ResultReference string    `db:"result_reference"`
	CreatedAt       time.Time `db:"created_at"`
}
