package scanner

import (
	"context"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/achievement-tracker/agent/enginerr"
	"github.com/achievement-tracker/agent/steamapi"
	"github.com/achievement-tracker/agent/store"
	"gopkg.in/ini.v1"
)

// EmulatorBScanner reads an INI file where each section is one achievement
// with an `achieved = true|false` key and an optional `timestamp`. Section
// names don't always match schema keys, so resolution follows the strict
// four-step order in §4.3. Grounded on the OnlineFix matching block of
// achievement_scanner.rs (lines ~640-910 of the original source).
//
// Schema is set by FullScan, or by the orchestrator before it starts a
// watcher on a freshly built scanner, and reused by every later
// ExtractUnlocks call, so a watcher reparse re-runs the same resolution
// algorithm against the game's schema (§9's pinned open-question behavior)
// without needing a remote call per reparse. With a nil Schema no section
// resolves.
type EmulatorBScanner struct {
	FilePath string
	Schema   []steamapi.SchemaEntry
}

func (s *EmulatorBScanner) Tag() store.ProviderTag { return store.EmulatorB }

type iniSection struct {
	name      string
	achieved  bool
	timestamp *int64
}

func (s *EmulatorBScanner) parseFile() ([]iniSection, error) {
	if _, err := os.Stat(s.FilePath); err != nil {
		if os.IsNotExist(err) {
			return nil, enginerr.Wrap(enginerr.ErrNotFound, err)
		}
		return nil, enginerr.Wrap(enginerr.ErrParse, err)
	}

	cfg, err := ini.Load(s.FilePath)
	if err != nil {
		return nil, enginerr.Wrap(enginerr.ErrParse, err)
	}

	var out []iniSection
	for _, sec := range cfg.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		achievedKey := sec.Key("achieved")
		achieved, _ := achievedKey.Bool()
		var ts *int64
		if sec.HasKey("timestamp") {
			if v, err := sec.Key("timestamp").Int64(); err == nil {
				ts = &v
			}
		}
		out = append(out, iniSection{name: sec.Name(), achieved: achieved, timestamp: ts})
	}
	return out, nil
}

var trailingIntRe = regexp.MustCompile(`(\d+)$`)

// resolveSection binds an INI section name to a schema achievement_key,
// following §4.3's strict four-step order. Returns ("", false) if nothing
// meets the token-overlap threshold.
func resolveSection(sectionName string, schema []steamapi.SchemaEntry) (string, bool) {
	// Step 1: exact equality.
	for _, def := range schema {
		if def.Key == sectionName {
			return def.Key, true
		}
	}

	// Step 2: trailing positive integer N, 1-based index into schema.
	if m := trailingIntRe.FindStringSubmatch(sectionName); m != nil {
		n := 0
		for _, r := range m[1] {
			n = n*10 + int(r-'0')
		}
		if n >= 1 && n <= len(schema) {
			return schema[n-1].Key, true
		}
	}

	// Step 3: strip ACH_/ACHIEVEMENT_ prefix, underscores -> spaces,
	// case-insensitive compare against display_name.
	cleaned := stripAchPrefix(sectionName)
	cleaned = strings.ReplaceAll(cleaned, "_", " ")
	for _, def := range schema {
		if strings.EqualFold(cleaned, def.DisplayName) {
			return def.Key, true
		}
	}

	// Step 4: token-overlap match.
	tokens := tokenize(cleaned)
	if len(tokens) == 0 {
		return "", false
	}
	threshold := len(tokens) / 2
	if threshold < 1 {
		threshold = 1
	}
	for _, def := range schema {
		target := tokenize(def.DisplayName + " " + def.Description)
		score := 0
		for _, t := range tokens {
			for _, u := range target {
				if tokensMatch(t, u) {
					score++
					break
				}
			}
		}
		if score >= threshold {
			return def.Key, true
		}
	}
	return "", false
}

func stripAchPrefix(s string) string {
	upper := strings.ToUpper(s)
	for _, prefix := range []string{"ACHIEVEMENT_", "ACH_"} {
		if strings.HasPrefix(upper, prefix) {
			return s[len(prefix):]
		}
	}
	return s
}

func (s *EmulatorBScanner) FullScan(ctx context.Context, gameID uint32, gameName string, schema []steamapi.SchemaEntry, rates map[string]float64) ([]store.Achievement, error) {
	s.Schema = schema
	sections, err := s.parseFile()
	if err != nil {
		return nil, err
	}

	unlockedByKey := make(map[string]*int64)
	for _, sec := range sections {
		if !sec.achieved {
			continue // locked sections are ignored; the full list comes from schema
		}
		if key, ok := resolveSection(sec.name, schema); ok {
			unlockedByKey[key] = sec.timestamp
		}
	}

	now := time.Now().UTC().Unix()
	out := make([]store.Achievement, 0, len(schema))
	for _, def := range schema {
		a := store.Achievement{
			GameID:         gameID,
			GameName:       gameName,
			AchievementKey: def.Key,
			DisplayName:    def.DisplayName,
			Description:    def.Description,
			IconURL:        def.Icon,
			IconGrayURL:    def.IconGray,
			Hidden:         def.Hidden,
			ProviderTag:    store.EmulatorB,
			LastUpdated:    now,
		}
		if ts, ok := unlockedByKey[def.Key]; ok {
			a.Unlocked = true
			a.UnlockTime = ts
		}
		if pct, ok := rates[def.Key]; ok {
			v := pct
			a.GlobalUnlockPct = &v
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *EmulatorBScanner) ExtractUnlocks(ctx context.Context) ([]Unlock, error) {
	sections, err := s.parseFile()
	if err != nil {
		return nil, err
	}
	out := make([]Unlock, 0, len(sections))
	for _, sec := range sections {
		if !sec.achieved {
			continue
		}
		if key, ok := resolveSection(sec.name, s.Schema); ok {
			out = append(out, Unlock{Key: key, UnlockTime: sec.timestamp})
		}
	}
	return out, nil
}
