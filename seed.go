/* seed.go
 * Contains the seed command, which creates matches and their question pools from a YAML file
 */

package main

import (
	"fmt"
	"os"

	"tugofwar/api/api"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Matches []seedMatch `yaml:"matches"`
}

type seedMatch struct {
	Round    int      `yaml:"round"`
	Duration int64    `yaml:"duration"` // seconds
	SideA    seedSide `yaml:"side_a"`
	SideB    seedSide `yaml:"side_b"`
}

type seedSide struct {
	Teams     []string       `yaml:"teams"`
	Handles   []string       `yaml:"handles"`
	Questions []seedQuestion `yaml:"questions"`
}

type seedQuestion struct {
	Contest string `yaml:"contest"`
	Index   string `yaml:"index"`
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
}

// readSeedFile parses a seed file into the matches to create
// Preconditions: Receives the path of a YAML file with a top level "matches" list
// Postconditions: Returns one MatchSeed per entry, or an error if the file is unreadable, malformed or empty
func readSeedFile(path string) ([]api.MatchSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if len(file.Matches) == 0 {
		return nil, fmt.Errorf("seed file %s has no matches", path)
	}

	seeds := make([]api.MatchSeed, 0, len(file.Matches))
	for _, m := range file.Matches {
		seeds = append(seeds, api.MatchSeed{
			RoundNumber:  m.Round,
			SideATeamIDs: m.SideA.Teams,
			SideBTeamIDs: m.SideB.Teams,
			SideAHandles: m.SideA.Handles,
			SideBHandles: m.SideB.Handles,
			PoolA:        m.SideA.pool(),
			PoolB:        m.SideB.pool(),
			Duration:     m.Duration,
		})
	}
	return seeds, nil
}

func (s seedSide) pool() []api.QuestionSeed {
	pool := make([]api.QuestionSeed, 0, len(s.Questions))
	for _, q := range s.Questions {
		pool = append(pool, api.QuestionSeed{ContestID: q.Contest, ProblemIndex: q.Index, Name: q.Name, URL: q.URL})
	}
	return pool
}

func seed(c *cli.Context) error {
	seeds, err := readSeedFile(c.String("file"))
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	apiPtr, closeStore, err := connect(c.Context, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	for i, s := range seeds {
		match, err := apiPtr.CreateMatch(c.Context, s)
		if err != nil {
			return fmt.Errorf("match %d: %w", i+1, err)
		}
		fmt.Printf("created match %s (round %d)\n", match.ID.Hex(), match.RoundNumber)
	}
	return nil
}
