package inference

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// builtinLexicon is the default signed word-weight table used when no lexicon
// file is configured. Positive weights pull toward positive sentiment.
var builtinLexicon = map[string]float64{
	"amazing": 2.0, "awesome": 2.0, "beautiful": 1.5, "best": 1.8,
	"brilliant": 1.8, "captivating": 1.5, "compelling": 1.2, "delightful": 1.5,
	"enjoyable": 1.2, "excellent": 2.0, "fantastic": 2.0, "favorite": 1.5,
	"good": 1.0, "great": 1.5, "happy": 1.2, "incredible": 1.8,
	"inspiring": 1.5, "interesting": 0.8, "love": 1.8, "loved": 1.8,
	"masterpiece": 2.2, "perfect": 2.0, "recommend": 1.2, "refreshing": 1.0,
	"wonderful": 1.8,

	"awful": -2.0, "bad": -1.0, "boring": -1.5, "confusing": -1.0,
	"disappointed": -1.5, "disappointing": -1.5, "dreadful": -2.0, "dull": -1.2,
	"hate": -1.8, "hated": -1.8, "horrible": -2.0, "mediocre": -1.0,
	"poor": -1.2, "predictable": -0.8, "slow": -0.8, "terrible": -2.0,
	"tedious": -1.2, "waste": -1.5, "weak": -1.0, "worst": -2.0,
}

// loadLexicon reads a word-weight table from path. Each non-empty line holds a
// word and a signed float weight separated by whitespace. Lines starting with
// '#' are skipped.
func loadLexicon(path string) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lexicon file: %w", err)
	}
	defer f.Close()

	lexicon := make(map[string]float64)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed lexicon line %d: %q", lineNo, line)
		}

		weight, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight on lexicon line %d: %w", lineNo, err)
		}
		lexicon[strings.ToLower(fields[0])] = weight
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read lexicon file: %w", err)
	}
	if len(lexicon) == 0 {
		return nil, fmt.Errorf("lexicon file %s contains no entries", path)
	}

	return lexicon, nil
}
