// Package seed loads the sample community into an empty database.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/indie-arcade/internal/apperror"
	"github.com/sakif/indie-arcade/internal/auth"
	"github.com/sakif/indie-arcade/internal/model"
	"github.com/sakif/indie-arcade/internal/repository"
)

// Store is the repository surface the seeder writes through.
type Store interface {
	repository.UserRepository
	repository.PostRepository
}

// Result counts what a run inserted.
type Result struct {
	UsersCreated int
	PostsCreated int
}

type sampleUser struct {
	Username    string
	MemberSince string
}

type samplePost struct {
	Title     string
	Content   string
	Username  string
	Timestamp string
	Tags      []string
	Rating    int
}

const stampLayout = "2006-01-02 15:04"

var users = []sampleUser{
	{"PixelPioneer", "2024-01-01 08:00"},
	{"RetroRaven", "2024-01-02 09:00"},
	{"GamerGuru", "2024-01-03 10:00"},
	{"SoulSeeker", "2024-01-04 11:00"},
	{"StrategySavant", "2024-01-05 12:00"},
	{"IslandInnovator", "2024-01-06 13:00"},
	{"SpeedDemon", "2024-01-07 14:00"},
	{"PuzzleMaster", "2024-01-08 15:00"},
	{"UnderworldExplorer", "2024-01-09 16:00"},
	{"SpaceVoyager", "2024-01-10 17:00"},
}

var posts = []samplePost{
	{
		Title:     `Discovering Hidden Gems: "Celeste"`,
		Content:   `I recently finished "Celeste" and the tight platforming mechanics, along with the touching story, really impressed me. Madeline's journey is beautifully crafted.`,
		Username:  "PixelPioneer",
		Timestamp: "2024-01-01 10:00",
		Tags:      []string{"Platformer", "Indie"},
		Rating:    5,
	},
	{
		Title:     `The Charm of "Stardew Valley"`,
		Content:   `I'm completely hooked on "Stardew Valley." The game's relaxing vibe and the freedom to play at your own pace make it a cozy delight.`,
		Username:  "RetroRaven",
		Timestamp: "2024-01-02 12:00",
		Tags:      []string{"Farming", "Cozy", "Indie"},
		Rating:    5,
	},
	{
		Title:     `Epic Adventures in "The Legend of Zelda: Breath of the Wild"`,
		Content:   `Exploring the vast world of Hyrule in "Breath of the Wild" has been an incredible experience. The sense of freedom and discovery is unmatched.`,
		Username:  "GamerGuru",
		Timestamp: "2024-01-03 14:00",
		Tags:      []string{"Adventure", "OpenWorld"},
		Rating:    5,
	},
	{
		Title:     `The Intensity of "Dark Souls III"`,
		Content:   `"Dark Souls III" offers a challenging yet rewarding experience. The intricate level design and tough enemies make every victory feel well-earned.`,
		Username:  "SoulSeeker",
		Timestamp: "2024-01-04 16:00",
		Tags:      []string{"RPG", "Soulslike"},
		Rating:    4,
	},
	{
		Title:     `Building Empires in "Civilization VI"`,
		Content:   `I love the strategic depth of "Civilization VI." Building my own empire and making crucial decisions keeps me engaged for hours on end.`,
		Username:  "StrategySavant",
		Timestamp: "2024-01-05 18:00",
		Tags:      []string{"Strategy", "TurnBased"},
		Rating:    4,
	},
	{
		Title:     `Unwinding with "Animal Crossing: New Horizons"`,
		Content:   `"Animal Crossing: New Horizons" is the perfect game to relax with. Designing my island and interacting with villagers brings a sense of calm and joy.`,
		Username:  "IslandInnovator",
		Timestamp: "2024-01-06 20:00",
		Tags:      []string{"Cozy", "LifeSim"},
		Rating:    4,
	},
	{
		Title:     `Racing Thrills in "Mario Kart 8 Deluxe"`,
		Content:   `Nothing beats the excitement of racing friends in "Mario Kart 8 Deluxe." The tracks are beautifully designed and the gameplay is always fun.`,
		Username:  "SpeedDemon",
		Timestamp: "2024-01-07 22:00",
		Tags:      []string{"Racing", "Multiplayer"},
		Rating:    4,
	},
	{
		Title:     `Puzzle Solving in "The Witness"`,
		Content:   `"The Witness" offers a unique puzzle-solving experience that challenges my mind. The beautiful island setting adds to the overall charm.`,
		Username:  "PuzzleMaster",
		Timestamp: "2024-01-08 09:00",
		Tags:      []string{"Puzzle", "Indie"},
		Rating:    3,
	},
	{
		Title:     `Action-Packed Adventure in "Hades"`,
		Content:   `"Hades" combines fast-paced action with a compelling story. The rogue-like elements keep each run fresh and exciting.`,
		Username:  "UnderworldExplorer",
		Timestamp: "2024-01-09 11:00",
		Tags:      []string{"Roguelike", "Action", "Indie"},
		Rating:    5,
	},
	{
		Title:     `Exploring Space in "No Man's Sky"`,
		Content:   `"No Man's Sky" offers a vast universe to explore. The sheer scale of the game and the ability to discover new planets and creatures is truly impressive.`,
		Username:  "SpaceVoyager",
		Timestamp: "2024-01-10 13:00",
		Tags:      []string{"Exploration", "SciFi"},
		Rating:    3,
	},
}

// Run inserts the sample users and their posts. It can be re-run: users
// that already exist are skipped together with their posts.
//
// Sample users get local identities, so in local auth mode they can sign
// in with their username.
func Run(ctx context.Context, store Store, logger *slog.Logger) (Result, error) {
	var res Result
	fresh := make(map[string]bool, len(users))

	for _, su := range users {
		since, err := time.ParseInLocation(stampLayout, su.MemberSince, time.UTC)
		if err != nil {
			return res, fmt.Errorf("seed: parsing memberSince for %s: %w", su.Username, err)
		}

		u := &model.User{
			Username:     su.Username,
			IdentityHash: auth.HashIdentity(auth.LocalIdentity(su.Username)),
			MemberSince:  since,
		}
		if err := store.CreateUser(ctx, u); err != nil {
			if errors.Is(err, apperror.ErrConflict) {
				logger.Info("seed: user exists, skipping", slog.String("username", su.Username))
				continue
			}
			return res, fmt.Errorf("seed: creating %s: %w", su.Username, err)
		}
		fresh[su.Username] = true
		res.UsersCreated++
	}

	for _, sp := range posts {
		if !fresh[sp.Username] {
			continue
		}
		ts, err := time.ParseInLocation(stampLayout, sp.Timestamp, time.UTC)
		if err != nil {
			return res, fmt.Errorf("seed: parsing timestamp for %q: %w", sp.Title, err)
		}

		rating := sp.Rating
		p := &model.Post{
			Title:     sp.Title,
			Content:   sp.Content,
			Username:  sp.Username,
			Timestamp: ts,
			Tags:      sp.Tags,
			Rating:    &rating,
		}
		if err := store.CreatePost(ctx, p); err != nil {
			return res, fmt.Errorf("seed: creating post %q: %w", sp.Title, err)
		}
		res.PostsCreated++
	}

	logger.Info("seed complete",
		slog.Int("users", res.UsersCreated),
		slog.Int("posts", res.PostsCreated),
	)
	return res, nil
}
