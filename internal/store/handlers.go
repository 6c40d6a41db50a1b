package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/tourneyq/internal/batch"
)

// Custom handler names.
const (
	HandlerReportMatch  = "match.report"
	HandlerAdjustRating = "player.adjust_rating"
)

// Register adds the tournament tables and custom handlers to reg.
func Register(reg *batch.Registry) error {
	for _, t := range Tables() {
		if err := reg.RegisterRepository(t); err != nil {
			return err
		}
	}
	if err := reg.RegisterHandler(HandlerReportMatch, ReportMatch); err != nil {
		return err
	}
	if err := reg.RegisterHandler(HandlerAdjustRating, AdjustRating); err != nil {
		return err
	}
	return nil
}

// NewRegistry returns a registry with the tournament tables and handlers registered.
func NewRegistry() *batch.Registry {
	reg := batch.NewRegistry()
	if err := Register(reg); err != nil {
		// Only reachable if the built-in names collide.
		panic(err)
	}
	return reg
}

// ReportMatch records a match result: data {match_id, winner_id, score}.
//
// The winner must be one of the two seated players and the match must not
// already have a result. The winner's wins and the loser's losses are
// incremented in the same session.
func ReportMatch(ctx context.Context, s batch.Session, data batch.Fields) error {
	ss, err := sessionFrom(s)
	if err != nil {
		return err
	}

	matchID, err := requireString(data, "match_id")
	if err != nil {
		return err
	}
	winnerID, err := requireString(data, "winner_id")
	if err != nil {
		return err
	}
	score := ""
	if v, ok := data.Get("score"); ok && v != nil {
		score = fmt.Sprint(v)
	}

	var p1, p2, winner sql.NullString
	err = ss.tx.QueryRowContext(ctx,
		"SELECT player1_id, player2_id, winner_id FROM matches WHERE id = ?", matchID,
	).Scan(&p1, &p2, &winner)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("report match %s: match %w", matchID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("report match %s: %w", matchID, err)
	}
	if winner.Valid {
		return fmt.Errorf("report match %s: already reported (winner %s)", matchID, winner.String)
	}

	if !p1.Valid || !p2.Valid {
		return fmt.Errorf("report match %s: match has an empty seat", matchID)
	}

	var loserID string
	switch winnerID {
	case p1.String:
		loserID = p2.String
	case p2.String:
		loserID = p1.String
	default:
		return fmt.Errorf("report match %s: winner %s is not seated in this match", matchID, winnerID)
	}

	if _, err := ss.exec(ctx,
		"UPDATE matches SET winner_id = ?, score = ? WHERE id = ?", winnerID, score, matchID,
	); err != nil {
		return fmt.Errorf("report match %s: %w", matchID, err)
	}
	if err := bumpCounter(ctx, ss, "wins", winnerID); err != nil {
		return fmt.Errorf("report match %s: %w", matchID, err)
	}
	if err := bumpCounter(ctx, ss, "losses", loserID); err != nil {
		return fmt.Errorf("report match %s: %w", matchID, err)
	}
	return nil
}

// AdjustRating adds delta to a player's rating: data {player_id, delta}.
func AdjustRating(ctx context.Context, s batch.Session, data batch.Fields) error {
	ss, err := sessionFrom(s)
	if err != nil {
		return err
	}

	playerID, err := requireString(data, "player_id")
	if err != nil {
		return err
	}
	raw, ok := data.Get("delta")
	if !ok {
		return fmt.Errorf("adjust rating: missing field %q", "delta")
	}
	delta, err := toInt64(raw)
	if err != nil {
		return fmt.Errorf("adjust rating: delta: %w", err)
	}

	res, err := ss.exec(ctx, "UPDATE players SET rating = rating + ? WHERE id = ?", delta, playerID)
	if err != nil {
		return fmt.Errorf("adjust rating %s: %w", playerID, err)
	}
	if err := requireAffected(res); err != nil {
		return fmt.Errorf("adjust rating: player %s %w", playerID, err)
	}
	return nil
}

// bumpCounter increments wins or losses. column is one of the two literals above.
func bumpCounter(ctx context.Context, ss *Session, column, playerID string) error {
	query := fmt.Sprintf("UPDATE players SET %s = %s + 1 WHERE id = ?", column, column)
	res, err := ss.exec(ctx, query, playerID)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return fmt.Errorf("player %s %w", playerID, err)
	}
	return nil
}

func requireString(data batch.Fields, name string) (string, error) {
	v, ok := data.Get(name)
	if !ok || v == nil {
		return "", fmt.Errorf("missing field %q", name)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("field %q must be a non-empty string, got %T", name, v)
	}
	return s, nil
}
