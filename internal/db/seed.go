package db

import (
	"fmt"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedDemoData resets the database and populates it with a demo agency:
// one admin, one manager, two matchmakers and a handful of end-users spread
// across lifecycle statuses.
//
// Behavior:
//  1. Clears all five tables.
//  2. Creates staff (all pre-approved) and users with hashed passwords.
//  3. Assigns members/clients to the two matchmakers, leaves prospects
//     unassigned, and deactivates one member to exercise the reactivation
//     flow.
//
// Compatible with both MySQL and SQLite (AUTO_INCREMENT reset skipped for
// SQLite).
func SeedDemoData(db *gorm.DB) error {
	tables := []string{
		"proposition_requests", "propositions",
		"reactivation_requests", "profiles", "users",
	}
	for _, tbl := range tables {
		if err := db.Exec("DELETE FROM " + tbl).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", tbl, err)
		}
	}

	switch db.Dialector.Name() {
	case "mysql":
		for _, tbl := range tables {
			db.Exec("ALTER TABLE " + tbl + " AUTO_INCREMENT = 1")
		}
	case "sqlite":
		for _, tbl := range tables {
			db.Exec("DELETE FROM sqlite_sequence WHERE name = ?", tbl)
		}
	}

	log.Println("Cleared existing data")

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	agency := uint64(1)

	staff := []User{
		{Name: "Admin", Email: "admin@agency.test", Role: RoleAdmin},
		{Name: "Manager", Email: "manager@agency.test", Role: RoleManager, AgencyID: &agency},
		{Name: "Matchmaker A", Email: "mm.a@agency.test", Role: RoleMatchmaker, AgencyID: &agency},
		{Name: "Matchmaker B", Email: "mm.b@agency.test", Role: RoleMatchmaker, AgencyID: &agency},
	}
	for i := range staff {
		staff[i].PasswordHash = string(hash)
		staff[i].ApprovalStatus = ApprovalApproved
		if err := db.Create(&staff[i]).Error; err != nil {
			return fmt.Errorf("failed to seed staff: %w", err)
		}
	}
	mmA, mmB := staff[2].ID, staff[3].ID

	users := []User{
		{Name: "Alice", Email: "alice@example.com", Status: StatusMember, AssignedMatchmakerID: &mmA},
		{Name: "Bruno", Email: "bruno@example.com", Status: StatusClient, AssignedMatchmakerID: &mmA},
		{Name: "Chloe", Email: "chloe@example.com", Status: StatusMember, AssignedMatchmakerID: &mmB},
		{Name: "David", Email: "david@example.com", Status: StatusClientExpire, AssignedMatchmakerID: &mmB},
		{Name: "Emma", Email: "emma@example.com", Status: StatusProspect},
		{Name: "Farid", Email: "farid@example.com", Status: StatusProspect},
	}
	for i := range users {
		users[i].Role = RoleUser
		users[i].AgencyID = &agency
		users[i].PasswordHash = string(hash)
		if err := db.Create(&users[i]).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}
		profile := Profile{
			UserID:        users[i].ID,
			AccountStatus: AccountActive,
			SearchAgeMin:  25,
			SearchAgeMax:  45,
			SearchRegion:  "IDF",
		}
		if err := db.Create(&profile).Error; err != nil {
			return fmt.Errorf("failed to seed profile: %w", err)
		}
	}

	// One deactivated member so the reactivation workflow has something to
	// act on out of the box.
	reason := "Inactif depuis 3 mois"
	if err := db.Model(&Profile{}).
		Where("user_id = ?", users[0].ID).
		Updates(map[string]any{
			"account_status":      AccountDeactivated,
			"deactivation_reason": reason,
			"activation_reason":   nil,
			"updated_at":          time.Now(),
		}).Error; err != nil {
		return fmt.Errorf("failed to deactivate demo member: %w", err)
	}

	log.Printf("Seeded %d staff and %d users.", len(staff), len(users))
	return nil
}
