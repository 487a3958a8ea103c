package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/google/uuid"
)

var seedProvinces = []string{"São Paulo", "Rio de Janeiro", "Minas Gerais", "Bahia", "Paraná"}
var seedGoals = []string{"serious", "casual", "friends"}
var seedInterests = []string{"music", "travel", "cooking", "football", "books", "gym", "cinema"}

// SeedTestData resets the database and populates it with demo profiles,
// credentials, balances, swipes, and a few stories.
//
// Behavior:
//  1. Clears every table.
//  2. Creates 24 profiles (half "male", half "female") with PIN 1234.
//  3. Generates ~150 swipes with ~70% likes; every mutual pair gets a
//     match row, mirroring what RecordLike would produce.
//
// Compatible with both MySQL and SQLite.
func SeedTestData(gdb *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	for _, m := range Models() {
		if err := gdb.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
			return fmt.Errorf("failed to clear table: %w", err)
		}
	}
	log.Println("Cleared existing data")

	pinHash, err := bcrypt.GenerateFromPassword([]byte("1234"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash pin: %w", err)
	}

	day := time.Now().UTC().Format("2006-01-02")
	tiers := []string{"free", "free", "plus", "premium"}

	ids := make([]string, 0, 24)
	for i := 1; i <= 24; i++ {
		id := uuid.NewString()
		ids = append(ids, id)

		gender := "male"
		if i > 12 {
			gender = "female"
		}

		p := Profile{
			ID:               id,
			DisplayName:      fmt.Sprintf("demo%d", i),
			Age:              20 + r.Intn(20),
			Gender:           gender,
			AvatarURL:        fmt.Sprintf("https://media.amora.app/seed/avatar-%d.jpg", i),
			Bio:              "Seed profile for local development.",
			Province:         seedProvinces[r.Intn(len(seedProvinces))],
			Interests:        []string{seedInterests[r.Intn(len(seedInterests))], seedInterests[r.Intn(len(seedInterests))]},
			Languages:        []string{"pt-BR"},
			RelationshipGoal: seedGoals[r.Intn(len(seedGoals))],
			Tier:             tiers[r.Intn(len(tiers))],
		}
		if err := gdb.Create(&p).Error; err != nil {
			return fmt.Errorf("failed to create profile: %w", err)
		}

		cred := Credential{
			ProfileID: id,
			Phone:     fmt.Sprintf("+55119%07d", 1000000+i),
			PINHash:   string(pinHash),
		}
		if err := gdb.Create(&cred).Error; err != nil {
			return fmt.Errorf("failed to create credential: %w", err)
		}

		bal := Balance{ProfileID: id, Daily: 10, Extra: r.Intn(10), Day: day}
		if err := gdb.Create(&bal).Error; err != nil {
			return fmt.Errorf("failed to create balance: %w", err)
		}
	}

	// Random swipes, mutual likes become matches.
	liked := make(map[string]bool)
	for i := 0; i < 150; i++ {
		viewer := ids[r.Intn(len(ids))]
		target := ids[r.Intn(len(ids))]
		if viewer == target {
			continue
		}
		action := "like"
		if r.Float64() > 0.7 {
			action = "dislike"
		}
		sw := Swipe{ViewerID: viewer, TargetID: target, Action: action}
		if err := gdb.Save(&sw).Error; err != nil {
			continue
		}
		if action == "like" {
			liked[viewer+"|"+target] = true
			if liked[target+"|"+viewer] {
				a, b := viewer, target
				if b < a {
					a, b = b, a
				}
				m := Match{ID: uuid.NewString(), UserA: a, UserB: b}
				_ = gdb.Create(&m).Error
			}
		}
	}

	for i := 0; i < 8; i++ {
		s := Story{
			ID:       uuid.NewString(),
			AuthorID: ids[r.Intn(len(ids))],
			Content:  fmt.Sprintf("Seed secret #%d", i+1),
		}
		if err := gdb.Create(&s).Error; err != nil {
			return fmt.Errorf("failed to create story: %w", err)
		}
	}

	log.Printf("Seeded %d profiles", len(ids))
	return nil
}
