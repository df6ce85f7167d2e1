package domain

import (
	"time"
)

// InventaireStatus is the state of a counting session
type InventaireStatus string

const (
	InventaireInProgress InventaireStatus = "in_progress"
	InventaireCompleted  InventaireStatus = "completed"
)

// Inventaire is a stock-count session
type Inventaire struct {
	ID          string           `db:"id" json:"id"`
	Name        string           `db:"name" json:"name"`
	Status      InventaireStatus `db:"status" json:"status"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	CompletedAt *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
}

// InventaireItem is one scanned line of an inventaire
type InventaireItem struct {
	ID             string     `db:"id" json:"id"`
	InventaireID   string     `db:"inventaire_id" json:"inventaire_id"`
	ProductCode    string     `db:"product_code" json:"product_code"`
	Quantity       int        `db:"quantity" json:"quantity"`
	ExpirationDate *time.Time `db:"expiration_date" json:"expiration_date,omitempty"`
	LotNumber      *string    `db:"lot_number" json:"lot_number,omitempty"`
	SignalementID  *string    `db:"signalement_id" json:"signalement_id,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// InventaireSummary aggregates the items of one inventaire
type InventaireSummary struct {
	ItemCount        int `db:"item_count" json:"item_count"`
	TotalQuantity    int `db:"total_quantity" json:"total_quantity"`
	DistinctProducts int `db:"distinct_products" json:"distinct_products"`
}

// StatusCount is one row of a grouped count
type StatusCount struct {
	Key   string `db:"key" json:"key"`
	Count int    `db:"count" json:"count"`
}
