package models

import (
	"log"

	"bitbucket.org/agrifocus/plantation_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&TransportCompany{}, &Division{}, &Block{},
		&HarvestRecord{}, &TransportLog{},
		&IdentifierAlias{}, &ImportRun{},
		&User{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
