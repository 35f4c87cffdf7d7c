package models

import (
	"log"

	"gorm.io/gorm"
)

func MigrateTable(db *gorm.DB) {
	err := db.AutoMigrate(
		&User{},
		&Property{}, &UtilityPrice{},
		&Tenant{},
		&Bill{}, &UtilityCharge{}, &PaymentTransaction{},
		&MatchResult{},
		&CycleWatermark{},
		&OutboxRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
