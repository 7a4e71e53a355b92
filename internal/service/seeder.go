package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	mrand "math/rand/v2"
	"time"

	"github.com/kathaghar/api/internal/database"
	"github.com/kathaghar/api/internal/model"
)

// SeedPassword is the password every seeded account gets.
const SeedPassword = "testpass123"

const defaultSeedPrefix = "seed_"

// TaleCreator is the slice of the tale repository the seeder needs.
type TaleCreator interface {
	Create(ctx context.Context, req *model.CreateTaleRequest) (*model.Tale, error)
}

// Connector hands out the shared database connection.
type Connector interface {
	Connect(ctx context.Context) (database.Database, error)
}

// SeederService generates demo accounts and tales for development
type SeederService struct {
	users  UserStore
	tales  TaleCreator
	conn   Connector
	hasher PasswordHasher
}

// SeederServiceConfig holds the seeder dependencies. Hasher defaults to the
// cheapest bcrypt cost since seeded passwords are public anyway.
type SeederServiceConfig struct {
	Users  UserStore
	Tales  TaleCreator
	Conn   Connector
	Hasher PasswordHasher
}

// NewSeederService creates a new seeder service
func NewSeederService(cfg SeederServiceConfig) *SeederService {
	s := &SeederService{
		users:  cfg.Users,
		tales:  cfg.Tales,
		conn:   cfg.Conn,
		hasher: cfg.Hasher,
	}
	if s.hasher == nil {
		s.hasher = NewBcryptHasher(4)
	}
	return s
}

// SeedRequest configures a seeding run
type SeedRequest struct {
	Users        int    `json:"users"`
	TalesPerUser int    `json:"tales_per_user"`
	PrivateEvery int    `json:"private_every,omitempty"` // every Nth tale is private; 0 means none
	Prefix       string `json:"prefix,omitempty"`        // marks seeded emails for cleanup
}

// SeedResult contains the results of a seeding operation
type SeedResult struct {
	Users    []string `json:"users"`
	Tales    []string `json:"tales"`
	Duration int64    `json:"duration_ms"`
}

// CleanupResult contains the results of a cleanup operation
type CleanupResult struct {
	Users    int   `json:"users"`
	Tales    int   `json:"tales"`
	Duration int64 `json:"duration_ms"`
}

var (
	seedNames = []string{
		"Aarati Shrestha", "Bikash Gurung", "Chandra Tamang", "Dipa Rai", "Gita Magar",
		"Hari Thapa", "Kamala Limbu", "Laxmi Sherpa", "Manish Karki", "Nirmala Adhikari",
		"Pasang Lama", "Rajesh Yadav", "Sabina Tharu", "Sunil Newar", "Tara Bhandari",
	}
	seedInstitutions = []string{
		"Tribhuvan University", "Kathmandu University", "Pokhara University",
		"Purbanchal University", "Nepal Folklore Society",
	}
	seedTitles = []string{
		"The Yeti of Makalu", "Lakhey's Dance", "Gurumapa and the Children",
		"The Frog Prince of the Terai", "Why the Danfe Wears Nine Colours",
		"The Salt Traders' Ghost", "Kumari's Silence", "The Lake That Swallowed a Village",
		"Bhimsen's Lost Oxen", "The Tiger and the Tharu Hunter",
	}
	seedStories = []string{
		"Long ago, before the roads reached the high valleys, travellers spoke of footprints in the snow.",
		"Every year at Indra Jatra the masked dancer roams the lanes, and the children hide behind their grandmothers.",
		"A demon lived in the forest and ate naughty children, until the people of the city struck a bargain with him.",
		"In the villages along the river the old women still tell this story when the monsoon rains begin.",
		"The herders say the bird was once plain and brown, until the mountain gods gave it a gift.",
	}
)

// Seed creates req.Users accounts with req.TalesPerUser tales each.
func (s *SeederService) Seed(ctx context.Context, req SeedRequest) (*SeedResult, error) {
	start := time.Now()

	if req.Users <= 0 || req.Users > 1000 {
		return nil, fmt.Errorf("users must be between 1 and 1000")
	}
	if req.TalesPerUser < 0 || req.TalesPerUser > 100 {
		return nil, fmt.Errorf("tales_per_user must be between 0 and 100")
	}
	if req.Prefix == "" {
		req.Prefix = defaultSeedPrefix
	}

	hash, err := s.hasher.Hash(SeedPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	result := &SeedResult{
		Users: make([]string, 0, req.Users),
		Tales: make([]string, 0, req.Users*req.TalesPerUser),
	}

	taleIndex := 0
	for i := 0; i < req.Users; i++ {
		inst := pick(seedInstitutions)
		user := &model.User{
			Name:        pick(seedNames),
			Email:       fmt.Sprintf("%s%s@seed.kathaghar.local", req.Prefix, randomID()),
			Hash:        &hash,
			Institution: &inst,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user %d: %w", i, err)
		}
		result.Users = append(result.Users, user.ID)

		for j := 0; j < req.TalesPerUser; j++ {
			taleIndex++
			public := req.PrivateEvery <= 0 || taleIndex%req.PrivateEvery != 0
			note := "Collected from oral tradition."
			tale, err := s.tales.Create(ctx, &model.CreateTaleRequest{
				Title:           pick(seedTitles),
				Story:           pick(seedStories),
				CulturalContext: &note,
				Region:          model.Regions[mrand.IntN(len(model.Regions))],
				AuthorID:        user.ID,
				IsPublic:        &public,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create tale for %s: %w", user.ID, err)
			}
			result.Tales = append(result.Tales, tale.ID)
		}
	}

	result.Duration = time.Since(start).Milliseconds()
	return result, nil
}

// Cleanup removes seeded users whose email starts with prefix, and their
// tales. Analytics events are left in place.
func (s *SeederService) Cleanup(ctx context.Context, prefix string) (*CleanupResult, error) {
	start := time.Now()

	if prefix == "" {
		prefix = defaultSeedPrefix
	}

	db, err := s.conn.Connect(ctx)
	if err != nil {
		return nil, err
	}

	results, err := db.Query(ctx, `
		DELETE tale WHERE string::starts_with(author.email, $prefix) RETURN BEFORE;
		DELETE user WHERE string::starts_with(email, $prefix) RETURN BEFORE;
	`, map[string]interface{}{"prefix": prefix})
	if err != nil {
		return nil, fmt.Errorf("failed to delete seeded data: %w", err)
	}

	return &CleanupResult{
		Tales:    statementRows(results, 0),
		Users:    statementRows(results, 1),
		Duration: time.Since(start).Milliseconds(),
	}, nil
}

func pick(options []string) string {
	return options[mrand.IntN(len(options))]
}

func randomID() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// statementRows counts the rows one statement of a multi-statement query
// returned.
func statementRows(results []interface{}, idx int) int {
	if idx >= len(results) {
		return 0
	}
	resp, ok := results[idx].(map[string]interface{})
	if !ok {
		return 0
	}
	rows, ok := resp["result"].([]interface{})
	if !ok {
		return 0
	}
	return len(rows)
}
