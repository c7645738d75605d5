// Package ledger settles coin movements: transactional reward grants that
// debit cost across participants, and simple additive session awards.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mrolland/defily/internal/activity"
	"github.com/mrolland/defily/internal/model"
	"github.com/mrolland/defily/internal/store"
)

// ErrInsufficientFunds is returned by Grant when the participants' combined
// balance does not cover the cost. Nothing is written on this path.
var ErrInsufficientFunds = errors.New("insufficient combined balance")

// ParticipantDebit reports one participant's share of a grant.
type ParticipantDebit struct {
	ID         model.ParticipantID `json:"id"`
	OldBalance int                 `json:"old_balance"`
	NewBalance int                 `json:"new_balance"`
}

// GrantResult is the outcome of a successful reward grant.
type GrantResult struct {
	Cost           int                `json:"cost"`
	HistoryID      int64              `json:"history_id"`
	PerParticipant []ParticipantDebit `json:"per_participant"`
}

// Service performs ledger settlements.
type Service struct {
	db           *sql.DB
	participants *store.ParticipantStore
	ledger       *store.LedgerStore
	rewards      *store.RewardStore
	sessions     *store.SessionStore
	events       *activity.Logger
	now          func() time.Time
}

func NewService(db *sql.DB, ps *store.ParticipantStore, ls *store.LedgerStore, rs *store.RewardStore, ss *store.SessionStore, events *activity.Logger) *Service {
	return &Service{
		db:           db,
		participants: ps,
		ledger:       ls,
		rewards:      rs,
		sessions:     ss,
		events:       events,
		now:          time.Now,
	}
}

// Distribute splits cost across n participants: the first remainder
// participants carry one extra coin, so the debits always sum to cost
// exactly.
func Distribute(cost, n int) []int {
	if n <= 0 {
		return nil
	}
	base := cost / n
	remainder := cost - base*n
	debits := make([]int, n)
	for i := range debits {
		debits[i] = base
		if remainder > 0 {
			debits[i]++
			remainder--
		}
	}
	return debits
}

// Grant redeems a catalog reward, debiting its cost across the given
// participants in order. All-or-nothing: any failure rolls the whole
// settlement back.
//
// Sufficiency is checked against the combined balance only; an individual
// participant can end up negative when the shares run past their own
// balance. Downstream accounting depends on this distribution, so it stays.
func (s *Service) Grant(householdID model.HouseholdID, rewardID string, cost int, participantIDs []model.ParticipantID, actor string, sessionID *model.SessionID) (*GrantResult, error) {
	if rewardID == "" {
		return nil, fmt.Errorf("grant: missing reward id")
	}
	if len(participantIDs) == 0 {
		return nil, fmt.Errorf("grant: no participants")
	}
	if cost < 0 {
		return nil, fmt.Errorf("grant: negative cost")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("grant: begin tx: %w", err)
	}

	result, err := s.grantTx(tx, householdID, rewardID, cost, participantIDs, actor, sessionID)
	if err != nil {
		tx.Rollback()
		// Failure log only after rollback, and never instead of the error.
		s.events.Error(householdID, "reward_grant_failed", rewardID, err.Error())
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("grant: commit: %w", err)
	}

	s.events.Info(householdID, "reward_granted", rewardID, participantIDs, fmt.Sprintf("%d", result.HistoryID))
	return result, nil
}

func (s *Service) grantTx(tx *sql.Tx, householdID model.HouseholdID, rewardID string, cost int, participantIDs []model.ParticipantID, actor string, sessionID *model.SessionID) (*GrantResult, error) {
	participants := s.participants.WithTx(tx)
	ledger := s.ledger.WithTx(tx)
	rewards := s.rewards.WithTx(tx)

	balanceByID, err := participants.Balances(participantIDs)
	if err != nil {
		return nil, fmt.Errorf("grant: %w", err)
	}
	balances := make([]int, len(participantIDs))
	total := 0
	for i, id := range participantIDs {
		balances[i] = balanceByID[id]
		total += balances[i]
	}

	if total < cost {
		return nil, ErrInsufficientFunds
	}

	debits := Distribute(cost, len(participantIDs))
	now := s.now()
	result := &GrantResult{
		Cost:           cost,
		PerParticipant: make([]ParticipantDebit, len(participantIDs)),
	}

	for i, id := range participantIDs {
		if err := participants.AddToBalance(id, -debits[i]); err != nil {
			return nil, fmt.Errorf("grant: %w", err)
		}
		_, err := ledger.Create(model.CoinLedgerEntry{
			HouseholdID:   householdID,
			ParticipantID: id,
			SessionID:     sessionID,
			Amount:        -debits[i],
			Reason:        "reward:" + rewardID,
			CreatedAt:     now,
			CreatedBy:     actor,
		})
		if err != nil {
			return nil, fmt.Errorf("grant: %w", err)
		}
		result.PerParticipant[i] = ParticipantDebit{
			ID:         id,
			OldBalance: balances[i],
			NewBalance: balances[i] - debits[i],
		}
	}

	historyID, err := rewards.CreateHistory(model.RewardHistoryEntry{
		RewardID:       rewardID,
		HouseholdID:    householdID,
		ParticipantIDs: participantIDs,
		SessionID:      sessionID,
		ReceivedAt:     now,
		ReceivedBy:     actor,
	})
	if err != nil {
		return nil, fmt.Errorf("grant: %w", err)
	}
	result.HistoryID = historyID

	return result, nil
}

// AwardCoins credits each participant amountPerChild, one ledger entry per
// participant. A non-positive amount or an empty participant list is a
// no-op: no writes, no events.
func (s *Service) AwardCoins(sessionID *model.SessionID, householdID model.HouseholdID, participantIDs []model.ParticipantID, amountPerChild int, reason, createdBy string) error {
	if amountPerChild <= 0 || len(participantIDs) == 0 {
		return nil
	}

	now := s.now()
	for _, id := range participantIDs {
		_, err := s.ledger.Create(model.CoinLedgerEntry{
			HouseholdID:   householdID,
			ParticipantID: id,
			SessionID:     sessionID,
			Amount:        amountPerChild,
			Reason:        reason,
			CreatedAt:     now,
			CreatedBy:     createdBy,
		})
		if err != nil {
			return fmt.Errorf("award coins: %w", err)
		}
		if err := s.participants.AddToBalance(id, amountPerChild); err != nil {
			return fmt.Errorf("award coins: %w", err)
		}
	}

	refID := ""
	if sessionID != nil {
		refID = sessionID.String()
	}
	s.events.Log(model.ActivityEvent{
		HouseholdID:    &householdID,
		ParticipantIDs: participantIDs,
		Type:           "coins_awarded",
		Level:          activity.LevelInfo,
		Context:        reason,
		Details:        fmt.Sprintf("total=%d", amountPerChild*len(participantIDs)),
		RefID:          refID,
	})
	return nil
}
