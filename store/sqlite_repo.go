package store

import (
	"context"
	"database/sql"
)

type sqliteRepo struct {
	db *sql.DB
}

// NewRepo wraps an open *sql.DB (see Open) as a Repo.
func NewRepo(sqldb *sql.DB) Repo {
	return &sqliteRepo{db: sqldb}
}

func (r *sqliteRepo) Upsert(ctx context.Context, a Achievement) (int64, error) {
	if a.LastUpdated == 0 {
		a.LastUpdated = nowEpoch()
	}
	const q = `
INSERT INTO achievements(game_id, game_name, achievement_key, display_name, description,
  icon_url, icon_gray_url, hidden, achieved, unlock_time, provider_tag, last_updated, global_unlock_pct)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(game_id, achievement_key, provider_tag) DO UPDATE SET
  game_name         = excluded.game_name,
  display_name      = excluded.display_name,
  description       = excluded.description,
  icon_url          = excluded.icon_url,
  icon_gray_url     = excluded.icon_gray_url,
  hidden            = excluded.hidden,
  achieved          = excluded.achieved,
  unlock_time       = excluded.unlock_time,
  last_updated      = excluded.last_updated,
  global_unlock_pct = excluded.global_unlock_pct;`

	_, err := r.db.ExecContext(ctx, q,
		a.GameID, a.GameName, a.AchievementKey, a.DisplayName, a.Description,
		nullStr(a.IconURL), nullStr(a.IconGrayURL), boolToInt(a.Hidden), boolToInt(a.Unlocked),
		a.UnlockTime, string(a.ProviderTag), a.LastUpdated, a.GlobalUnlockPct)
	if err != nil {
		return 0, err
	}

	var id int64
	const selID = `SELECT id FROM achievements WHERE game_id=? AND achievement_key=? AND provider_tag=?;`
	if err := r.db.QueryRowContext(ctx, selID, a.GameID, a.AchievementKey, string(a.ProviderTag)).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *sqliteRepo) ListByGame(ctx context.Context, gameID uint32) ([]Achievement, error) {
	const q = `
SELECT id, game_id, game_name, achievement_key, display_name, description, icon_url, icon_gray_url,
  hidden, achieved, unlock_time, provider_tag, last_updated, global_unlock_pct
FROM achievements
WHERE game_id = ?
ORDER BY achievement_key ASC;`
	rows, err := r.db.QueryContext(ctx, q, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAchievements(rows)
}

func (r *sqliteRepo) SummarizeAll(ctx context.Context) ([]GameSummary, error) {
	const q = `
SELECT game_id, provider_tag, COUNT(*), SUM(achieved), MAX(last_updated)
FROM achievements
GROUP BY game_id, provider_tag
ORDER BY game_id ASC, provider_tag ASC;`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GameSummary
	for rows.Next() {
		var s GameSummary
		var tag string
		var unlockedSum sql.NullInt64
		if err := rows.Scan(&s.GameID, &tag, &s.Total, &unlockedSum, &s.MaxLastUpdated); err != nil {
			return nil, err
		}
		s.ProviderTag = ProviderTag(tag)
		s.UnlockedCount = int(unlockedSum.Int64)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *sqliteRepo) MarkUnlocked(ctx context.Context, rowID int64, unlockTime *int64) error {
	const q = `UPDATE achievements SET achieved=1, unlock_time=?, last_updated=? WHERE id=?;`
	_, err := r.db.ExecContext(ctx, q, unlockTime, nowEpoch(), rowID)
	return err
}

func (r *sqliteRepo) DeleteByGame(ctx context.Context, gameID uint32) error {
	const q = `DELETE FROM achievements WHERE game_id = ? AND provider_tag <> ?;`
	_, err := r.db.ExecContext(ctx, q, gameID, string(Manual))
	return err
}

func (r *sqliteRepo) AddExclusion(ctx context.Context, gameID uint32, name string) error {
	const q = `
INSERT INTO exclusions(game_id, name) VALUES(?, ?)
ON CONFLICT(game_id) DO UPDATE SET name = excluded.name;`
	_, err := r.db.ExecContext(ctx, q, gameID, name)
	return err
}

func (r *sqliteRepo) ListExclusions(ctx context.Context) ([]Exclusion, error) {
	const q = `SELECT game_id, name FROM exclusions ORDER BY game_id ASC;`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Exclusion
	for rows.Next() {
		var e Exclusion
		if err := rows.Scan(&e.GameID, &e.Name); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *sqliteRepo) RemoveExclusion(ctx context.Context, gameID uint32) error {
	const q = `DELETE FROM exclusions WHERE game_id = ?;`
	_, err := r.db.ExecContext(ctx, q, gameID)
	return err
}

func (r *sqliteRepo) IsExcluded(ctx context.Context, gameID uint32) (bool, error) {
	const q = `SELECT 1 FROM exclusions WHERE game_id = ?;`
	var one int
	err := r.db.QueryRowContext(ctx, q, gameID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *sqliteRepo) ExportAll(ctx context.Context) ([]FullExportEntry, error) {
	summaries, err := r.SummarizeAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]FullExportEntry, 0, len(summaries))
	for _, s := range summaries {
		all, err := r.ListByGame(ctx, s.GameID)
		if err != nil {
			return nil, err
		}
		var subset []Achievement
		for _, a := range all {
			if a.ProviderTag == s.ProviderTag {
				subset = append(subset, a)
			}
		}
		out = append(out, FullExportEntry{Game: s, Achievements: subset})
	}
	return out, nil
}

func (r *sqliteRepo) ExportUnlockedForGame(ctx context.Context, gameID uint32) (map[string]UnlockedExport, error) {
	rows, err := r.ListByGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]UnlockedExport)
	for _, a := range rows {
		if a.Unlocked && a.UnlockTime != nil {
			out[a.AchievementKey] = UnlockedExport{UnlockTime: *a.UnlockTime}
		}
	}
	return out, nil
}

func (r *sqliteRepo) RestoreFromBackup(ctx context.Context, gameID uint32, backup map[string]UnlockedExport) (int, error) {
	rows, err := r.ListByGame(ctx, gameID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, a := range rows {
		entry, ok := backup[a.AchievementKey]
		if !ok {
			continue
		}
		ut := entry.UnlockTime
		if err := r.MarkUnlocked(ctx, a.ID, &ut); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func scanAchievements(rows *sql.Rows) ([]Achievement, error) {
	var out []Achievement
	for rows.Next() {
		var a Achievement
		var iconURL, iconGray sql.NullString
		var achievedInt, hiddenInt int
		var unlockTime sql.NullInt64
		var tag string
		var globalPct sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.GameID, &a.GameName, &a.AchievementKey, &a.DisplayName, &a.Description,
			&iconURL, &iconGray, &hiddenInt, &achievedInt, &unlockTime, &tag, &a.LastUpdated, &globalPct); err != nil {
			return nil, err
		}
		a.IconURL = iconURL.String
		a.IconGrayURL = iconGray.String
		a.Hidden = hiddenInt != 0
		a.Unlocked = achievedInt != 0
		if unlockTime.Valid {
			v := unlockTime.Int64
			a.UnlockTime = &v
		}
		a.ProviderTag = ProviderTag(tag)
		if globalPct.Valid {
			v := globalPct.Float64
			a.GlobalUnlockPct = &v
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
