package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"lunch-voting-backend/database"
	"lunch-voting-backend/models"

	"gorm.io/gorm"
)

// SessionResults is the computed outcome of a session. For active sessions
// it is a live view recomputed from the vote entries on every call; for
// closed sessions it is the frozen snapshot taken at close time.
type SessionResults struct {
	SessionID          uint                     `json:"session_id"`
	Status             models.SessionStatus     `json:"status"`
	Totals             []models.RestaurantTotal `json:"totals"`
	WinnerRestaurantID *uint                    `json:"winner_restaurant_id"`
	TiedRestaurantIDs  []uint                   `json:"tied_restaurant_ids,omitempty"`
	ComputedAt         time.Time                `json:"computed_at"`
}

// ComputeResults returns the session's standings. Draft sessions have no
// results to show.
func ComputeResults(ctx context.Context, sessionID uint) (*SessionResults, error) {
	session, err := GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case models.SessionDraft:
		return nil, ErrInvalidState
	case models.SessionClosed:
		return frozenResults(ctx, session)
	default:
		return liveResults(ctx, session)
	}
}

// liveResults recomputes the standings from the vote entries. Never cached:
// an active session's totals can change with every cast.
func liveResults(ctx context.Context, session *models.VoteSession) (*SessionResults, error) {
	totals, err := computeStandings(database.DB.WithContext(ctx), session)
	if err != nil {
		return nil, err
	}
	winner, tied := pickWinner(totals)
	return &SessionResults{
		SessionID:          session.ID,
		Status:             session.Status,
		Totals:             totals,
		WinnerRestaurantID: winner,
		TiedRestaurantIDs:  tied,
		ComputedAt:         nowFunc(),
	}, nil
}

// frozenResults returns the snapshot written when the session closed,
// verbatim.
func frozenResults(ctx context.Context, session *models.VoteSession) (*SessionResults, error) {
	var snapshot models.ResultSnapshot
	err := database.DB.WithContext(ctx).
		Where("session_id = ?", session.ID).
		First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var totals []models.RestaurantTotal
	if err := json.Unmarshal(snapshot.Totals, &totals); err != nil {
		return nil, err
	}
	var tied []uint
	if len(snapshot.TiedRestaurantIDs) > 0 {
		if err := json.Unmarshal(snapshot.TiedRestaurantIDs, &tied); err != nil {
			return nil, err
		}
	}
	return &SessionResults{
		SessionID:          session.ID,
		Status:             session.Status,
		Totals:             totals,
		WinnerRestaurantID: snapshot.WinnerRestaurantID,
		TiedRestaurantIDs:  tied,
		ComputedAt:         snapshot.ComputedAt,
	}, nil
}

// computeStandings aggregates the vote entries into one row per member
// restaurant. Restaurants without votes appear with zero totals. Rows are
// ordered by weighted total desc, then distinct voters desc, then id asc so
// the output is deterministic.
func computeStandings(tx *gorm.DB, session *models.VoteSession) ([]models.RestaurantTotal, error) {
	var members []models.Restaurant
	if err := tx.Model(session).Association("Restaurants").Find(&members); err != nil {
		return nil, err
	}

	type aggRow struct {
		RestaurantID   uint
		WeightedTotal  float64
		DistinctVoters int
	}
	var rows []aggRow
	err := tx.Model(&models.VoteEntry{}).
		Select("restaurant_id, SUM(weight) AS weighted_total, COUNT(DISTINCT user_id) AS distinct_voters").
		Where("session_id = ?", session.ID).
		Group("restaurant_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[uint]aggRow, len(rows))
	for _, r := range rows {
		byID[r.RestaurantID] = r
	}

	totals := make([]models.RestaurantTotal, 0, len(members))
	for _, m := range members {
		row := byID[m.ID]
		totals = append(totals, models.RestaurantTotal{
			RestaurantID:   m.ID,
			RestaurantName: m.Name,
			WeightedTotal:  row.WeightedTotal,
			DistinctVoters: row.DistinctVoters,
		})
	}
	sort.SliceStable(totals, func(i, j int) bool {
		if totals[i].WeightedTotal != totals[j].WeightedTotal {
			return totals[i].WeightedTotal > totals[j].WeightedTotal
		}
		if totals[i].DistinctVoters != totals[j].DistinctVoters {
			return totals[i].DistinctVoters > totals[j].DistinctVoters
		}
		return totals[i].RestaurantID < totals[j].RestaurantID
	})
	return totals, nil
}

// pickWinner applies the tie-break: highest weighted total wins; among
// restaurants tied on total, the one with more distinct voters wins. If the
// tie survives both criteria there is no winner and all tied restaurant ids
// are reported.
func pickWinner(totals []models.RestaurantTotal) (*uint, []uint) {
	if len(totals) == 0 {
		return nil, nil
	}

	top := totals[0].WeightedTotal
	leaders := make([]models.RestaurantTotal, 0, len(totals))
	for _, t := range totals {
		if t.WeightedTotal == top {
			leaders = append(leaders, t)
		}
	}
	if len(leaders) == 1 {
		id := leaders[0].RestaurantID
		return &id, nil
	}

	maxVoters := leaders[0].DistinctVoters
	for _, t := range leaders[1:] {
		if t.DistinctVoters > maxVoters {
			maxVoters = t.DistinctVoters
		}
	}
	tied := make([]uint, 0, len(leaders))
	for _, t := range leaders {
		if t.DistinctVoters == maxVoters {
			tied = append(tied, t.RestaurantID)
		}
	}
	if len(tied) == 1 {
		id := tied[0]
		return &id, nil
	}
	sort.Slice(tied, func(i, j int) bool { return tied[i] < tied[j] })
	return nil, tied
}

// freezeResults computes the final standings of a closing session and writes
// the snapshot in the caller's transaction. Written exactly once per session;
// the unique index on session_id rejects a second write.
func freezeResults(tx *gorm.DB, session *models.VoteSession, closedAt time.Time) error {
	totals, err := computeStandings(tx, session)
	if err != nil {
		return err
	}
	winner, tied := pickWinner(totals)

	totalsJSON, err := json.Marshal(totals)
	if err != nil {
		return err
	}
	snapshot := models.ResultSnapshot{
		SessionID:          session.ID,
		Totals:             totalsJSON,
		WinnerRestaurantID: winner,
		ComputedAt:         closedAt,
	}
	if len(tied) > 0 {
		tiedJSON, err := json.Marshal(tied)
		if err != nil {
			return err
		}
		snapshot.TiedRestaurantIDs = tiedJSON
	}
	return tx.Create(&snapshot).Error
}

// ResultHistory lists the frozen results of sessions closed in [from, to],
// oldest close first. Zero bounds are open-ended.
func ResultHistory(ctx context.Context, from, to time.Time) ([]SessionResults, error) {
	query := database.DB.WithContext(ctx).
		Model(&models.VoteSession{}).
		Where("status = ?", models.SessionClosed)
	if !from.IsZero() {
		query = query.Where("closed_at >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("closed_at <= ?", to)
	}

	var sessions []models.VoteSession
	if err := query.Order("closed_at ASC").Find(&sessions).Error; err != nil {
		return nil, err
	}

	results := make([]SessionResults, 0, len(sessions))
	for i := range sessions {
		res, err := frozenResults(ctx, &sessions[i])
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		results = append(results, *res)
	}
	return results, nil
}
