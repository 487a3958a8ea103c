package local

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/amoradev/amora/internal/db"
	"github.com/amoradev/amora/internal/entitlement"
	svcErr "github.com/amoradev/amora/internal/errors"
	"github.com/amoradev/amora/internal/model"
)

// ConsumeBalanceUnits is the authoritative batidas procedure: inside
// one transaction it rolls the daily allowance at the period boundary,
// checks the combined daily+extra balance, and deducts daily units
// before extras. The caller only mirrors the returned state.
func (g *Gateway) ConsumeBalanceUnits(ctx context.Context, viewerID string, amount int) (bool, model.BalanceState, error) {
	if amount <= 0 {
		return false, model.BalanceState{}, svcErr.Validationf("amount must be positive")
	}

	var ok bool
	var state model.BalanceState

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bal, err := g.loadBalanceTx(tx, viewerID)
		if err != nil {
			return err
		}

		if bal.Daily+bal.Extra < amount {
			ok = false
			state = model.BalanceState{Daily: bal.Daily, Extra: bal.Extra}
			return nil
		}

		fromDaily := amount
		if fromDaily > bal.Daily {
			fromDaily = bal.Daily
		}
		bal.Daily -= fromDaily
		bal.Extra -= amount - fromDaily

		if err := tx.Save(bal).Error; err != nil {
			return err
		}
		ok = true
		state = model.BalanceState{Daily: bal.Daily, Extra: bal.Extra}
		return nil
	})
	if err != nil {
		return false, model.BalanceState{}, fmt.Errorf("consume balance: %w", err)
	}
	return ok, state, nil
}

// GetBalance reports the current state, rolling the day if stale.
func (g *Gateway) GetBalance(ctx context.Context, viewerID string) (model.BalanceState, error) {
	var state model.BalanceState
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bal, err := g.loadBalanceTx(tx, viewerID)
		if err != nil {
			return err
		}
		if err := tx.Save(bal).Error; err != nil {
			return err
		}
		state = model.BalanceState{Daily: bal.Daily, Extra: bal.Extra}
		return nil
	})
	if err != nil {
		return model.BalanceState{}, fmt.Errorf("get balance: %w", err)
	}
	return state, nil
}

// loadBalanceTx reads the viewer's ledger row inside the caller's
// transaction, creating it on first touch and refilling the daily
// allowance when the stored day is stale.
func (g *Gateway) loadBalanceTx(tx *gorm.DB, viewerID string) (*db.Balance, error) {
	today := g.now().UTC().Format("2006-01-02")

	var bal db.Balance
	err := tx.First(&bal, "profile_id = ?", viewerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		bal = db.Balance{ProfileID: viewerID, Daily: g.dailyAllowance(tx, viewerID), Day: today}
		if err := tx.Create(&bal).Error; err != nil {
			return nil, err
		}
		return &bal, nil
	}
	if err != nil {
		return nil, err
	}

	if bal.Day != today {
		bal.Daily = g.dailyAllowance(tx, viewerID)
		bal.Day = today
	}
	return &bal, nil
}

// dailyAllowance resolves the refill from the profile's plan tier.
func (g *Gateway) dailyAllowance(tx *gorm.DB, viewerID string) int {
	var p db.Profile
	if err := tx.Select("tier").First(&p, "id = ?", viewerID).Error; err != nil {
		return entitlement.LimitsFor(entitlement.TierFree).DailyBatidas
	}
	return entitlement.LimitsFor(entitlement.ParseTier(p.Tier)).DailyBatidas
}
