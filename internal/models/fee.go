package models

import "time"

// Fee is one entry of the standard fee catalog.
type Fee struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Amount    int64     `db:"amount" json:"amount"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// StandardCatalog returns the seed fee catalog. Amounts are whole rupees.
func StandardCatalog() []Fee {
	return []Fee{
		{Name: "Tuition", Amount: 10000},
		{Name: "Bus", Amount: 5000},
		{Name: "Personality Development", Amount: 2000},
		{Name: "Exam", Amount: 1500},
	}
}

// AcademicYears returns the fixed set of academic year labels the ledger
// tracks. Every student carries one ledger row per catalog fee per year.
func AcademicYears() []string {
	return []string{"2024-25", "2025-26", "2026-27", "2027-28"}
}
