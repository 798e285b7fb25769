package models

import (
	"log"

	"github.com/mmdatafocus/pipeworks_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{}, &Settings{}, &Sequence{},
		&InventoryItem{}, &RateListEntry{},
		&Quotation{}, &QuotationItem{}, &QuotationPayment{},
		&ReturnRecord{}, &ReturnLine{},
		&SalesReportTotal{},
		&Employee{}, &SalaryRecord{},
		&ExpenseMonth{}, &ExpenseEntry{},
		&OutboxEvent{}, &IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
